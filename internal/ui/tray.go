package ui

import (
	"sync"
	"sync/atomic"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// Tray is the system tray Indicator. Run must be called from the main
// goroutine; it owns the platform event loop until Stop or Quit.
type Tray struct {
	log    *logger.Logger
	onQuit func()

	updates *mailbox
	stopped chan struct{}
	running atomic.Bool
	once    sync.Once

	statusItem *systray.MenuItem
	quitItem   *systray.MenuItem
}

// NewTray creates a tray. onQuit is called when the user picks Quit.
func NewTray(log *logger.Logger, onQuit func()) *Tray {
	return &Tray{
		log:     log,
		onQuit:  onQuit,
		updates: newMailbox(),
		stopped: make(chan struct{}),
	}
}

// Run shows the tray icon and blocks until the tray exits. ready runs once
// the menu is built.
func (t *Tray) Run(ready func()) {
	systray.Run(func() {
		t.onReady()
		if ready != nil {
			ready()
		}
	}, t.onExit)
}

func (t *Tray) onReady() {
	t.running.Store(true)

	systray.SetTitle("TimeTrack")
	t.apply(StatusActive)

	title := systray.AddMenuItem("TimeTrack Agent", "")
	title.Disable()
	t.statusItem = systray.AddMenuItem("Status: "+StatusActive.Label(), "Agent status")
	t.statusItem.Disable()
	systray.AddSeparator()
	t.quitItem = systray.AddMenuItem("Quit", "Stop TimeTrack Agent")

	go t.loop()
	t.log.Info("tray ready")
}

func (t *Tray) loop() {
	for {
		select {
		case <-t.stopped:
			return
		case s := <-t.updates.ch:
			t.apply(s)
			if t.statusItem != nil {
				t.statusItem.SetTitle("Status: " + s.Label())
			}
		case <-t.quitItem.ClickedCh:
			t.log.Info("quit requested from tray")
			if t.onQuit != nil {
				t.onQuit()
			}
			t.Stop()
		}
	}
}

func (t *Tray) apply(s Status) {
	systray.SetIcon(Icon(s))
	systray.SetTooltip(s.Tooltip())
}

func (t *Tray) onExit() {
	t.running.Store(false)
	t.log.Debug("tray exited")
}

// SetStatus queues s for display. Only the latest pending status is kept.
func (t *Tray) SetStatus(s Status) {
	t.updates.put(s)
}

// Stop removes the icon and makes Run return. Safe to call more than once.
func (t *Tray) Stop() {
	t.once.Do(func() {
		// paint the final status before the icon goes away
		select {
		case s := <-t.updates.ch:
			if t.running.Load() {
				t.apply(s)
			}
		default:
		}
		close(t.stopped)
		if t.running.Load() {
			systray.Quit()
		}
		t.log.Debug("tray stopped", zap.Bool("was_running", t.running.Load()))
	})
}

// mailbox holds at most one Status; put replaces an undelivered value.
type mailbox struct {
	ch chan Status
	mu sync.Mutex
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan Status, 1)}
}

func (m *mailbox) put(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.ch:
	default:
	}
	m.ch <- s
}
