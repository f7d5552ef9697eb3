//go:build windows
// +build windows

package idle

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
	procGetTickCount     = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// windowsSource reads the session-wide last input tick. It cannot tell
// physical input from injected input.
type windowsSource struct{}

func newPlatformSource() interfaces.IdleSource {
	return windowsSource{}
}

func (windowsSource) IdleElapsed() (time.Duration, bool) {
	var info lastInputInfo
	info.cbSize = uint32(unsafe.Sizeof(info))

	ret, _, _ := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, false
	}

	now, _, _ := procGetTickCount.Call()
	return tickElapsed(uint32(now), info.dwTime), true
}

// tickElapsed subtracts in 32 bits so the result survives the ~49.7 day
// GetTickCount wraparound.
func tickElapsed(now, last uint32) time.Duration {
	return time.Duration(now-last) * time.Millisecond
}
