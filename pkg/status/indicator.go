package status

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

// Status is the delivery state of the last toggle notification
type Status int

const (
	StatusIdle Status = iota
	StatusSending
	StatusSuccess
	StatusFailed
)

// successDisplayWindow is how long a successful send stays on the line
const successDisplayWindow = 30 * time.Second

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Indicator keeps a one-line summary of the runtime state on the last
// terminal row.
type Indicator struct {
	mu       sync.Mutex
	writer   io.Writer
	enabled  bool
	now      func() time.Time
	delivery Status
	lastSent time.Time

	runtime   types.RuntimeStatus
	hasStatus bool

	refreshChan chan struct{}
}

// NewIndicator creates an indicator writing to writer. A disabled
// indicator tracks state but never writes.
func NewIndicator(writer io.Writer, enabled bool) *Indicator {
	return &Indicator{
		writer:      writer,
		enabled:     enabled,
		now:         time.Now,
		delivery:    StatusIdle,
		refreshChan: make(chan struct{}, 1),
	}
}

// Write implements interfaces.StatusSink
func (i *Indicator) Write(status types.RuntimeStatus) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.runtime = status
	i.hasStatus = true
	return i.drawLocked()
}

// SetStatus records the delivery state of the last notification and
// redraws. Draw failures are ignored.
func (i *Indicator) SetStatus(status Status) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.delivery = status
	if status == StatusSuccess {
		i.lastSent = i.now()
	}
	_ = i.drawLocked()
}

// Line returns the text the indicator would draw, without escape codes for
// cursor movement.
func (i *Indicator) Line() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lineLocked()
}

func (i *Indicator) drawLocked() error {
	if !i.enabled || i.writer == nil {
		return nil
	}
	line := i.lineLocked()
	if line == "" {
		return nil
	}

	// Save cursor, reset the scroll region, jump to the last row, clear it,
	// write, restore cursor.
	_, err := fmt.Fprintf(i.writer, "\0337\033[r\033[999;1H\033[2K%s\0338", line)
	return err
}

func (i *Indicator) lineLocked() string {
	var parts []string
	if i.hasStatus {
		parts = append(parts, runtimeSegments(i.runtime)...)
	}
	if seg := i.deliverySegmentLocked(); seg != "" {
		parts = append(parts, seg)
	}
	return strings.Join(parts, " ")
}

func runtimeSegments(s types.RuntimeStatus) []string {
	segs := []string{paint(colorGreen, "▶ active")}
	if s.IsIdle {
		segs[0] = paint(colorYellow, "Ⓩ idle")
	}

	switch {
	case s.OverlayVisible:
		segs = append(segs, paint(colorCyan, "▣ overlay"))
	case s.OverlayEnabled:
		segs = append(segs, paint(colorGray, "□ overlay"))
	}

	switch {
	case s.AntiSleepActive:
		segs = append(segs, paint(colorCyan, "☕ awake"))
	case s.AntiSleepEnabled:
		segs = append(segs, paint(colorGray, "☕ awake"))
	}
	return segs
}

func (i *Indicator) deliverySegmentLocked() string {
	switch i.delivery {
	case StatusSending:
		return paint(colorYellow, "⟳ ntfy")
	case StatusSuccess:
		age := i.now().Sub(i.lastSent)
		if age < successDisplayWindow {
			return paint(colorGreen, fmt.Sprintf("✓ ntfy (%ds)", int(age.Seconds())))
		}
	case StatusFailed:
		return paint(colorRed, "✗ ntfy")
	}
	return ""
}

func paint(color, text string) string {
	return color + text + colorReset
}

// Clear blanks the last terminal row
func (i *Indicator) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.enabled || i.writer == nil {
		return nil
	}
	_, err := fmt.Fprint(i.writer, "\0337\033[999;1H\033[2K\0338")
	return err
}

// Refresh asks the auto-refresh loop for an immediate redraw
func (i *Indicator) Refresh() {
	if !i.enabled {
		return
	}
	select {
	case i.refreshChan <- struct{}{}:
	default:
		// Refresh already pending
	}
}

// StartAutoRefresh redraws every interval so the line survives scrolling
// output, until stopChan closes. The line is cleared on exit.
func (i *Indicator) StartAutoRefresh(interval time.Duration, stopChan <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
			case <-i.refreshChan:
			case <-stopChan:
				_ = i.Clear() // Best effort
				return
			}
			i.mu.Lock()
			_ = i.drawLocked()
			i.mu.Unlock()
		}
	}()
}

// Ensure Indicator implements StatusSink
var _ interfaces.StatusSink = (*Indicator)(nil)
