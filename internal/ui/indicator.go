// Package ui shows the agent's status to the user.
package ui

import (
	"image/color"
	"sync"

	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// Status is what the indicator displays.
type Status int

const (
	StatusActive Status = iota
	StatusIdle
	StatusDisconnected
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusIdle:
		return "idle"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "offline"
	}
}

// Label is the human-readable form used in the tooltip and menu.
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusIdle:
		return "Idle"
	case StatusDisconnected:
		return "Disconnected"
	default:
		return "Offline"
	}
}

// Tooltip returns the tray tooltip for s.
func (s Status) Tooltip() string {
	return "TimeTrack - " + s.Label()
}

// Color is the dot colour drawn in the tray icon.
func (s Status) Color() color.RGBA {
	switch s {
	case StatusActive:
		return color.RGBA{R: 0x2e, G: 0xb8, B: 0x4b, A: 0xff}
	case StatusIdle:
		return color.RGBA{R: 0xf2, G: 0xb1, B: 0x1b, A: 0xff}
	case StatusDisconnected:
		return color.RGBA{R: 0xd9, G: 0x3b, B: 0x2f, A: 0xff}
	default:
		return color.RGBA{R: 0x8a, G: 0x8a, B: 0x8a, A: 0xff}
	}
}

// Indicator displays the current status. SetStatus must never block the
// caller.
type Indicator interface {
	SetStatus(s Status)
	Stop()
}

// LogIndicator is the headless Indicator: it logs status changes.
type LogIndicator struct {
	log *logger.Logger

	mu      sync.Mutex
	current Status
	set     bool
	stopped bool
}

func NewLogIndicator(log *logger.Logger) *LogIndicator {
	return &LogIndicator{log: log}
}

func (l *LogIndicator) SetStatus(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || (l.set && l.current == s) {
		return
	}
	l.current, l.set = s, true
	l.log.Info("status changed", zap.Stringer("status", s))
}

// Status returns the last status set and whether one was set at all.
func (l *LogIndicator) Status() (Status, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current, l.set
}

func (l *LogIndicator) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
}
