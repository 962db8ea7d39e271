// Package idle decides whether the user is at the workstation.
//
// Entering Idle is poll-driven: Poll compares the time since the last input
// with the threshold, so detection lags by up to one poll interval. Leaving
// Idle is event-driven: RecordInput flips the state back to Active on the
// very next input event without waiting for a poll.
package idle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/activity"
	"github.com/ifruncillo/timetrack-agent/internal/events"
	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

const (
	DefaultThreshold    = 600 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// State is the user's presence as seen by the detector.
type State int

const (
	Active State = iota
	Idle
)

func (s State) String() string {
	if s == Idle {
		return "idle"
	}
	return "active"
}

// Cause says what triggered a transition.
type Cause string

const (
	CauseInputTimeout  Cause = "input_timeout"
	CauseInputResumed  Cause = "input_resumed"
	CauseSessionLock   Cause = "session_lock"
	CauseSessionUnlock Cause = "session_unlock"
)

// Transition describes a state change. IdleFor is the time since the last
// input when entering Idle, and the length of the idle period when leaving it.
type Transition struct {
	From    State
	To      State
	At      time.Time
	IdleFor time.Duration
	Cause   Cause
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(e events.Event) bool
}

// Config holds detector timing.
type Config struct {
	Threshold    time.Duration
	PollInterval time.Duration
}

var ErrBadTiming = errors.New("idle: poll interval must be positive and shorter than the threshold")

// Detector is the idle/active state machine. The clock and the state are the
// only shared mutable data; state transitions happen under mu and are
// published before mu is released so observers see them in order.
type Detector struct {
	clock *activity.Clock
	pub   Publisher
	log   *logger.Logger
	now   func() time.Time

	threshold    time.Duration
	pollInterval time.Duration

	mu        sync.Mutex
	state     State
	idleSince time.Time
	locked    bool
}

// NewDetector creates a detector in the Active state. Zero durations in cfg
// take the defaults.
func NewDetector(cfg Config, clock *activity.Clock, pub Publisher, log *logger.Logger, now func() time.Time) (*Detector, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollInterval < 0 || cfg.PollInterval >= cfg.Threshold {
		return nil, fmt.Errorf("%w (poll %s, threshold %s)", ErrBadTiming, cfg.PollInterval, cfg.Threshold)
	}
	if now == nil {
		now = time.Now
	}
	return &Detector{
		clock:        clock,
		pub:          pub,
		log:          log,
		now:          now,
		threshold:    cfg.Threshold,
		pollInterval: cfg.PollInterval,
		state:        Active,
	}, nil
}

// State returns the current state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsIdle reports whether the current state is Idle.
func (d *Detector) IsIdle() bool {
	return d.State() == Idle
}

// Threshold returns the configured idle threshold.
func (d *Detector) Threshold() time.Duration {
	return d.threshold
}

// RecordInput is the input-source callback: it records the activity and
// leaves Idle immediately if needed. While the session is locked the input
// is recorded but the state stays Idle until SessionUnlocked.
func (d *Detector) RecordInput() {
	d.clock.Record()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Idle || d.locked {
		return
	}
	d.leaveIdle(CauseInputResumed)
}

// Poll checks the elapsed time since the last input and enters Idle once it
// reaches the threshold. The clock is read under mu so an input recorded
// before Poll takes the lock is never judged against a stale reading.
func (d *Detector) Poll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Active {
		return
	}
	elapsed := d.clock.Since()
	if elapsed < d.threshold {
		return
	}
	d.enterIdle(CauseInputTimeout, elapsed)
}

// SessionLocked enters Idle at once, regardless of the threshold, and holds
// it until SessionUnlocked.
func (d *Detector) SessionLocked() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.locked {
		return
	}
	d.locked = true
	if d.state == Active {
		d.enterIdle(CauseSessionLock, d.clock.Since())
	}
}

// SessionUnlocked counts as input and leaves Idle.
func (d *Detector) SessionUnlocked() {
	d.clock.Record()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.locked {
		return
	}
	d.locked = false
	if d.state == Idle {
		d.leaveIdle(CauseSessionUnlock)
	}
}

// enterIdle and leaveIdle must be called with mu held.
func (d *Detector) enterIdle(cause Cause, elapsed time.Duration) {
	at := d.now()
	d.state = Idle
	d.idleSince = d.clock.Last()
	d.log.Info("user idle",
		zap.Duration("elapsed", elapsed.Truncate(time.Second)),
		zap.String("cause", string(cause)))
	d.publish(events.KindIdleStart, Transition{From: Active, To: Idle, At: at, IdleFor: elapsed, Cause: cause})
}

func (d *Detector) leaveIdle(cause Cause) {
	at := d.now()
	t := Transition{From: Idle, To: Active, At: at, IdleFor: at.Sub(d.idleSince), Cause: cause}
	d.state = Active
	d.idleSince = time.Time{}
	d.log.Info("user activity resumed",
		zap.Duration("idle_for", t.IdleFor),
		zap.String("cause", string(cause)))
	d.publish(events.KindIdleEnd, t)
}

// Run polls on the configured cadence until ctx is done.
func (d *Detector) Run(ctx context.Context) {
	d.log.Info("idle detector started",
		zap.Duration("threshold", d.threshold),
		zap.Duration("poll_interval", d.pollInterval))

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Poll()
		}
	}
}

// publish must be called with mu held.
func (d *Detector) publish(kind events.Kind, t Transition) {
	if d.pub == nil {
		return
	}
	if !d.pub.Publish(events.NewEvent(kind, t)) {
		d.log.Warn("transition not delivered", zap.String("kind", string(kind)))
	}
}
