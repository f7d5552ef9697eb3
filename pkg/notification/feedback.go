package notification

import (
	"log/slog"
	"time"

	"github.com/Veraticus/awakeguard/pkg/types"
)

// ToggleFeedback announces when a settings change flips overlay or
// anti-sleep enablement
type ToggleFeedback struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewToggleFeedback creates feedback that sends through notifier
func NewToggleFeedback(notifier Notifier, logger *slog.Logger) *ToggleFeedback {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToggleFeedback{notifier: notifier, logger: logger.With("component", "feedback")}
}

// Changed sends one notification per flipped toggle. Send failures are
// logged.
func (f *ToggleFeedback) Changed(prev, next types.RuntimeSettings) {
	for _, n := range ToggleNotifications(prev, next, time.Now()) {
		if err := f.notifier.Send(n); err != nil {
			f.logger.Warn("failed to send toggle feedback", "title", n.Title, "error", err)
		}
	}
}

// ToggleNotifications returns the notifications for the toggles that differ
// between prev and next
func ToggleNotifications(prev, next types.RuntimeSettings, now time.Time) []Notification {
	var out []Notification
	if prev.OverlayEnabled != next.OverlayEnabled {
		out = append(out, Notification{
			Title:   "Overlay " + onOff(next.OverlayEnabled),
			Message: "Idle overlay " + enabledText(next.OverlayEnabled),
			Time:    now,
			Tag:     "overlay",
		})
	}
	if prev.AntiSleepEnabled != next.AntiSleepEnabled {
		out = append(out, Notification{
			Title:   "Anti-sleep " + onOff(next.AntiSleepEnabled),
			Message: "Sleep prevention " + enabledText(next.AntiSleepEnabled),
			Time:    now,
			Tag:     "anti-sleep",
		})
	}
	return out
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func enabledText(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
