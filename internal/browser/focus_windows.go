//go:build windows

package browser

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// maxWindowsPerPid bounds how many top-level windows of the spawned
// process we touch.
const maxWindowsPerPid = 3

type windowsFocusSuppressor struct{}

func newFocusSuppressor() FocusSuppressor {
	return windowsFocusSuppressor{}
}

type enumCollector struct {
	pid     uint32
	targets []windows.HWND
}

// enumCallback is created once; NewCallback slots are never released.
var enumCallback = sync.OnceValue(func() uintptr {
	return windows.NewCallback(func(hwnd windows.HWND, lparam uintptr) uintptr {
		col := (*enumCollector)(unsafe.Pointer(lparam))
		if !windows.IsWindowVisible(hwnd) {
			return 1 // continue enumeration
		}
		var wpid uint32
		windows.GetWindowThreadProcessId(hwnd, &wpid)
		if wpid == col.pid {
			col.targets = append(col.targets, hwnd)
		}
		return 1
	})
})

// ShowWithoutActivating walks visible top-level windows belonging to pid
// and re-shows them with SW_SHOWNOACTIVATE.
func (windowsFocusSuppressor) ShowWithoutActivating(pid int) error {
	col := &enumCollector{pid: uint32(pid)}

	if err := windows.EnumWindows(enumCallback(), unsafe.Pointer(col)); err != nil {
		return err
	}

	targets := col.targets
	if len(targets) > maxWindowsPerPid {
		targets = targets[:maxWindowsPerPid]
	}
	for _, hwnd := range targets {
		_ = windows.ShowWindow(hwnd, windows.SW_SHOWNOACTIVATE)
	}
	return nil
}
