//go:build !windows

package input

import (
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

const loginctl = "loginctl"

var errNoSession = errors.New("XDG_SESSION_ID is not set")

// SessionLocked asks systemd-logind for the LockedHint of the current
// session.
func SessionLocked() (bool, error) {
	id := os.Getenv("XDG_SESSION_ID")
	if id == "" {
		return false, errNoSession
	}
	out, err := exec.Command(loginctl, "show-session", id, "-p", "LockedHint", "--value").Output()
	if err != nil {
		return false, err
	}
	return parseLockedHint(string(out)), nil
}

func parseLockedHint(s string) bool {
	return strings.TrimSpace(s) == "yes"
}

// NewSystemSessionWatcher returns the platform session watcher. Without
// logind there is nothing to observe and Run reports ErrUnsupported.
func NewSystemSessionWatcher(log *logger.Logger) *SessionWatcher {
	if _, err := exec.LookPath(loginctl); err != nil || os.Getenv("XDG_SESSION_ID") == "" {
		return NewSessionWatcher(nil, 0, log)
	}
	return NewSessionWatcher(SessionLocked, DefaultSessionInterval, log)
}
