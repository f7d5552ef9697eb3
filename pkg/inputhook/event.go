// Package inputhook observes low-level keyboard and mouse input and keeps
// watermarks of the last physical input and the last injected input that
// should count as waking the user.
package inputhook

// EventKind classifies an intercepted input event.
type EventKind int

const (
	KindKeyDown EventKind = iota
	KindKeyUp
	KindMouseMove
	KindButtonDown
	KindButtonUp
	KindWheel
)

// IsInteraction reports whether the event is a deliberate interaction
// (key press, button press, wheel) as opposed to movement or release.
func (k EventKind) IsInteraction() bool {
	switch k {
	case KindKeyDown, KindButtonDown, KindWheel:
		return true
	default:
		return false
	}
}

func (k EventKind) String() string {
	switch k {
	case KindKeyDown:
		return "key-down"
	case KindKeyUp:
		return "key-up"
	case KindMouseMove:
		return "mouse-move"
	case KindButtonDown:
		return "button-down"
	case KindButtonUp:
		return "button-up"
	case KindWheel:
		return "wheel"
	default:
		return "unknown"
	}
}

// Event is one intercepted input event.
type Event struct {
	Kind     EventKind
	Injected bool
}

// Hook installs OS input interceptors and pumps their events.
//
// Run is called on a dedicated goroutine. It must report the install
// outcome exactly once through installed, then block delivering events to
// handle until Quit is called. If installation fails Run returns right
// after reporting the error.
type Hook interface {
	Run(handle func(Event), installed func(error))
	Quit()
}
