package notification

import (
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/awakeguard/pkg/testutil"
	"github.com/Veraticus/awakeguard/pkg/types"
)

func TestToggleNotifications(t *testing.T) {
	base := types.DefaultSettings()
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name       string
		mutate     func(*types.RuntimeSettings)
		wantTitles []string
	}{
		{
			name:   "no toggles",
			mutate: func(s *types.RuntimeSettings) { s.OverlayOpacity = 0.3; s.IdleThresholdSeconds = 10 },
		},
		{
			name:       "overlay off",
			mutate:     func(s *types.RuntimeSettings) { s.OverlayEnabled = false },
			wantTitles: []string{"Overlay OFF"},
		},
		{
			name:       "anti-sleep on",
			mutate:     func(s *types.RuntimeSettings) { s.AntiSleepEnabled = true },
			wantTitles: []string{"Anti-sleep ON"},
		},
		{
			name: "both",
			mutate: func(s *types.RuntimeSettings) {
				s.OverlayEnabled = false
				s.AntiSleepEnabled = true
			},
			wantTitles: []string{"Overlay OFF", "Anti-sleep ON"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base
			tt.mutate(&next)

			got := ToggleNotifications(base, next, now)
			if len(got) != len(tt.wantTitles) {
				t.Fatalf("got %d notifications, want %d", len(got), len(tt.wantTitles))
			}
			for i, n := range got {
				if n.Title != tt.wantTitles[i] {
					t.Errorf("notification %d title = %q, want %q", i, n.Title, tt.wantTitles[i])
				}
				if !n.Time.Equal(now) {
					t.Errorf("notification %d time = %v", i, n.Time)
				}
			}
		})
	}
}

func TestToggleFeedback_Changed(t *testing.T) {
	mockNotifier := testutil.NewMockNotifier()
	feedback := NewToggleFeedback(mockNotifier, quietLogger())

	prev := types.DefaultSettings()
	next := prev
	next.AntiSleepEnabled = true
	feedback.Changed(prev, next)

	sent := mockNotifier.GetNotifications()
	if len(sent) != 1 || sent[0].Title != "Anti-sleep ON" || sent[0].Tag != "anti-sleep" {
		t.Errorf("sent = %+v", sent)
	}

	// Failures are swallowed
	mockNotifier.SetError(errors.New("offline"))
	feedback.Changed(next, prev)
	if len(mockNotifier.GetAttempts()) != 2 {
		t.Errorf("attempts = %d, want 2", len(mockNotifier.GetAttempts()))
	}
}
