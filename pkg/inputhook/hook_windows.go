//go:build windows
// +build windows

package inputhook

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	kernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procSetWindowsHookExW  = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHook  = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx     = user32.NewProc("CallNextHookEx")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procPeekMessageW       = user32.NewProc("PeekMessageW")
	procTranslateMessage   = user32.NewProc("TranslateMessage")
	procDispatchMessageW   = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
	procGetModuleHandleW   = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit        = 0x0012
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C
	wmMouseHWheel = 0x020E

	llkhfInjected = 0x10
	llmhfInjected = 0x01

	pmNoRemove = 0x0000
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msllHookStruct struct {
	Pt          struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// Low-level hook callbacks cannot carry a receiver, and Go caps the number
// of callbacks a process may create, so they are created once and route to
// the hook whose pump is currently running.
var (
	activeHook       atomic.Pointer[windowsHook]
	keyboardCallback = windows.NewCallback(keyboardProc)
	mouseCallback    = windows.NewCallback(mouseProc)
)

type windowsHook struct {
	handle   func(Event)
	threadID atomic.Uint32
	quit     atomic.Bool
}

// NewPlatformHook returns the WH_KEYBOARD_LL / WH_MOUSE_LL hook.
func NewPlatformHook() Hook {
	return &windowsHook{}
}

func (h *windowsHook) Run(handle func(Event), installed func(error)) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// Force creation of the thread message queue before publishing the
	// thread id, so a Quit that observes the id can always post to it.
	var m msg
	_, _, _ = procPeekMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0, pmNoRemove)
	h.threadID.Store(windows.GetCurrentThreadId())
	if h.quit.Load() {
		installed(errors.New("input hook stopped before installation"))
		return
	}

	h.handle = handle
	activeHook.Store(h)
	defer activeHook.CompareAndSwap(h, nil)

	module, _, _ := procGetModuleHandleW.Call(0)

	keyboard, _, err := procSetWindowsHookExW.Call(whKeyboardLL, keyboardCallback, module, 0)
	if keyboard == 0 {
		installed(errors.Wrap(err, "SetWindowsHookEx(WH_KEYBOARD_LL)"))
		return
	}
	defer procUnhookWindowsHook.Call(keyboard)

	mouse, _, err := procSetWindowsHookExW.Call(whMouseLL, mouseCallback, module, 0)
	if mouse == 0 {
		installed(errors.Wrap(err, "SetWindowsHookEx(WH_MOUSE_LL)"))
		return
	}
	defer procUnhookWindowsHook.Call(mouse)

	installed(nil)

	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// 0 is WM_QUIT, -1 is an error; both end the pump.
		if int32(ret) <= 0 {
			return
		}
		_, _, _ = procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		_, _, _ = procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func (h *windowsHook) Quit() {
	h.quit.Store(true)
	if tid := h.threadID.Load(); tid != 0 {
		_, _, _ = procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
	}
}

func keyboardProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) >= 0 {
		if h := activeHook.Load(); h != nil && h.handle != nil {
			info := (*kbdllHookStruct)(unsafe.Pointer(lParam))
			kind := KindKeyUp
			switch wParam {
			case wmKeyDown, wmSysKeyDown:
				kind = KindKeyDown
			case wmKeyUp, wmSysKeyUp:
				kind = KindKeyUp
			}
			h.handle(Event{Kind: kind, Injected: info.Flags&llkhfInjected != 0})
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
}

func mouseProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) >= 0 {
		if h := activeHook.Load(); h != nil && h.handle != nil {
			info := (*msllHookStruct)(unsafe.Pointer(lParam))
			h.handle(Event{Kind: mouseKind(wParam), Injected: info.Flags&llmhfInjected != 0})
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
}

func mouseKind(message uintptr) EventKind {
	switch message {
	case wmLButtonDown, wmRButtonDown, wmMButtonDown, wmXButtonDown:
		return KindButtonDown
	case wmLButtonUp, wmRButtonUp, wmMButtonUp, wmXButtonUp:
		return KindButtonUp
	case wmMouseWheel, wmMouseHWheel:
		return KindWheel
	default:
		return KindMouseMove
	}
}
