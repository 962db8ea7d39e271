//go:build windows

package input

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

var (
	modUser32   = windows.NewLazySystemDLL("user32.dll")
	modKernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetLastInputInfo = modUser32.NewProc("GetLastInputInfo")
	procGetTickCount     = modKernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// SystemIdle returns how long the session has been without keyboard or
// mouse input.
func SystemIdle() (time.Duration, error) {
	var info lastInputInfo
	info.cbSize = uint32(unsafe.Sizeof(info))

	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, fmt.Errorf("GetLastInputInfo: %w", err)
	}

	tick, _, _ := procGetTickCount.Call()

	// uint32 arithmetic survives the 49.7 day tick wrap
	idleMillis := uint32(tick) - info.dwTime
	return time.Duration(idleMillis) * time.Millisecond, nil
}

// NewSystemSource returns the platform input source.
func NewSystemSource(log *logger.Logger) Source {
	return NewPoller(SystemIdle, DefaultSampleInterval, log)
}
