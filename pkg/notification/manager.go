package notification

import (
	"log/slog"
	"sync"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
)

// Manager sends notifications through one notifier under a rate limit and
// reports delivery progress
type Manager struct {
	notifier    Notifier
	rateLimiter interfaces.RateLimiter
	reporter    interfaces.StatusReporter
	logger      *slog.Logger

	mu sync.Mutex
}

// NewManager creates a new notification manager. rateLimiter may be nil.
func NewManager(notifier Notifier, rateLimiter interfaces.RateLimiter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		notifier:    notifier,
		rateLimiter: rateLimiter,
		logger:      logger.With("component", "notification"),
	}
}

// SetStatusReporter sets the reporter told about each send
func (m *Manager) SetStatusReporter(reporter interfaces.StatusReporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporter = reporter
}

// Send delivers the notification unless the rate limit drops it
func (m *Manager) Send(notification Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rateLimiter != nil && !m.rateLimiter.Allow() {
		m.logger.Debug("notification dropped by rate limit", "title", notification.Title)
		return nil
	}

	if m.reporter != nil {
		m.reporter.ReportSending()
	}
	if err := m.notifier.Send(notification); err != nil {
		if m.reporter != nil {
			m.reporter.ReportFailure()
		}
		return err
	}
	if m.reporter != nil {
		m.reporter.ReportSuccess()
	}
	return nil
}

// MultiNotifier sends to every notifier and returns the first error
type MultiNotifier []Notifier

// Send implements Notifier
func (mn MultiNotifier) Send(notification Notification) error {
	var first error
	for _, n := range mn {
		if err := n.Send(notification); err != nil && first == nil {
			first = err
		}
	}
	return first
}
