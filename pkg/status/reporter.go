package status

import (
	"log/slog"
	"sync"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
)

// Reporter forwards notification delivery progress to the Indicator and
// logs runs of consecutive delivery failures.
type Reporter struct {
	indicator *Indicator
	logger    *slog.Logger

	mu       sync.Mutex
	failures int
}

// NewReporter creates a reporter. indicator may be nil.
func NewReporter(indicator *Indicator, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		indicator: indicator,
		logger:    logger.With("component", "delivery"),
	}
}

// ReportSending marks a notification as in flight
func (r *Reporter) ReportSending() {
	r.set(StatusSending)
}

// ReportSuccess marks the last notification delivered
func (r *Reporter) ReportSuccess() {
	r.mu.Lock()
	failed := r.failures
	r.failures = 0
	r.mu.Unlock()

	if failed > 0 {
		r.logger.Info("notification delivery recovered", "failed_attempts", failed)
	}
	r.set(StatusSuccess)
}

// ReportFailure marks the last notification failed
func (r *Reporter) ReportFailure() {
	r.mu.Lock()
	r.failures++
	failed := r.failures
	r.mu.Unlock()

	r.logger.Warn("notification delivery failed", "consecutive", failed)
	r.set(StatusFailed)
}

// ConsecutiveFailures returns the failures since the last success
func (r *Reporter) ConsecutiveFailures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

func (r *Reporter) set(s Status) {
	if r.indicator != nil {
		r.indicator.SetStatus(s)
	}
}

// Ensure Reporter implements StatusReporter
var _ interfaces.StatusReporter = (*Reporter)(nil)
