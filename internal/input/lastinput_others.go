//go:build !windows

package input

import (
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// xprintidle prints the X11 idle time in milliseconds.
const xprintidle = "xprintidle"

// SystemIdle asks the X server for the idle time.
func SystemIdle() (time.Duration, error) {
	out, err := exec.Command(xprintidle).Output()
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// NewSystemSource returns the platform input source. Without an X display
// and xprintidle there is nothing to observe and Run reports ErrUnsupported.
func NewSystemSource(log *logger.Logger) Source {
	if _, err := exec.LookPath(xprintidle); err != nil {
		return NewPoller(nil, 0, log)
	}
	return NewPoller(SystemIdle, DefaultSampleInterval, log)
}
