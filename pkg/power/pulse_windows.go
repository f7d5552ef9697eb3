//go:build windows
// +build windows

package power

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

const (
	inputMouse      = 0
	mouseeventfMove = 0x0001
)

type mouseInput struct {
	Dx          int32
	Dy          int32
	MouseData   uint32
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

// input mirrors the INPUT struct for the mouse variant; the union is sized
// by its largest member, which on both 386 and amd64 is MOUSEINPUT.
type input struct {
	Type uint32
	Mi   mouseInput
}

type sendInputPulser struct{}

// NewPulser returns a pulser that moves the cursor one pixel and back.
func NewPulser() interfaces.InputPulser {
	return sendInputPulser{}
}

func (sendInputPulser) Pulse() error {
	inputs := [2]input{
		{Type: inputMouse, Mi: mouseInput{Dx: 1, DwFlags: mouseeventfMove}},
		{Type: inputMouse, Mi: mouseInput{Dx: -1, DwFlags: mouseeventfMove}},
	}

	sent, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if sent != uintptr(len(inputs)) {
		return errors.Wrapf(err, "SendInput sent %d of %d events", sent, len(inputs))
	}
	return nil
}
