//go:build windows

package input

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

var (
	procOpenInputDesktop = modUser32.NewProc("OpenInputDesktop")
	procSwitchDesktop    = modUser32.NewProc("SwitchDesktop")
	procCloseDesktop     = modUser32.NewProc("CloseDesktop")
)

const desktopSwitchDesktop = 0x0100

// SessionLocked reports whether the lock screen owns the input desktop.
// The default desktop can be switched to only while the session is unlocked.
func SessionLocked() (bool, error) {
	h, _, err := procOpenInputDesktop.Call(0, 0, desktopSwitchDesktop)
	if h == 0 {
		// the secure desktop refuses the handle
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return true, nil
		}
		return false, fmt.Errorf("OpenInputDesktop: %w", err)
	}
	defer procCloseDesktop.Call(h)

	ret, _, _ := procSwitchDesktop.Call(h)
	return ret == 0, nil
}

// NewSystemSessionWatcher returns the platform session watcher.
func NewSystemSessionWatcher(log *logger.Logger) *SessionWatcher {
	return NewSessionWatcher(SessionLocked, DefaultSessionInterval, log)
}
