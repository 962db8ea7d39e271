// Package input turns the operating system's input activity into a callback
// per detected keyboard or mouse event.
package input

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

const DefaultSampleInterval = 250 * time.Millisecond

// sampleTolerance absorbs the resolution of the system idle counter, which
// on Windows advances in steps of roughly 16ms.
const sampleTolerance = 30 * time.Millisecond

// ErrUnsupported is returned when the platform offers no way to observe input.
var ErrUnsupported = errors.New("input monitoring not supported on this platform")

// Source delivers onInput for every observed input event until ctx is done.
type Source interface {
	Run(ctx context.Context, onInput func()) error
}

// IdleFunc reports how long the system has been without input.
type IdleFunc func() (time.Duration, error)

// Poller samples an IdleFunc and fires onInput whenever the idle counter
// grew by less than the time that passed between two samples, which means
// input arrived in between.
type Poller struct {
	idle     IdleFunc
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// NewPoller creates a Poller. A zero interval uses DefaultSampleInterval.
func NewPoller(idle IdleFunc, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Poller{idle: idle, interval: interval, log: log, now: time.Now}
}

// inputBetween reports whether an idle counter that read prev and then cur,
// elapsed apart, was reset by input in between.
func inputBetween(prev, cur, elapsed time.Duration) bool {
	return cur+sampleTolerance < prev+elapsed
}

// Run implements Source.
func (p *Poller) Run(ctx context.Context, onInput func()) error {
	if p.idle == nil {
		return ErrUnsupported
	}
	prev, err := p.idle()
	if err != nil {
		return err
	}
	prevAt := p.now()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur, err := p.idle()
			at := p.now()
			if err != nil {
				failures++
				// one line per streak is enough
				if failures == 1 {
					p.log.Warn("reading idle counter failed", zap.Error(err))
				}
				continue
			}
			failures = 0
			// a failed read keeps prevAt, so the gap spans the whole streak
			if inputBetween(prev, cur, at.Sub(prevAt)) {
				onInput()
			}
			prev, prevAt = cur, at
		}
	}
}
