// Package scheduler runs the periodic screenshot capture.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/api"
	"github.com/ifruncillo/timetrack-agent/internal/capture"
	"github.com/ifruncillo/timetrack-agent/internal/events"
	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

const DefaultInterval = 300 * time.Second

// TickResult says what a single tick did.
type TickResult int

const (
	TickSkippedIdle TickResult = iota
	TickCaptureFailed
	TickReported
	TickReportFailed
	TickDiscarded
)

func (r TickResult) String() string {
	switch r {
	case TickSkippedIdle:
		return "skipped_idle"
	case TickCaptureFailed:
		return "capture_failed"
	case TickReported:
		return "reported"
	case TickReportFailed:
		return "report_failed"
	default:
		return "discarded"
	}
}

// IdleReader exposes the detector's current state.
type IdleReader interface {
	IsIdle() bool
}

// Reporter sends one report. *api.Client satisfies it.
type Reporter interface {
	Send(ctx context.Context, action string, data any) api.Outcome
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(e events.Event) bool
}

// SkipReason is the payload of events.KindCaptureSkipped.
type SkipReason string

const (
	SkipIdle          SkipReason = "idle"
	SkipCaptureFailed SkipReason = "capture_failed"
)

// Scheduler captures and reports a screenshot every interval while the user
// is active. Ticks never overlap: the timer is re-armed only after a tick
// finishes.
type Scheduler struct {
	interval time.Duration
	idle     IdleReader
	capturer capture.Capturer
	reporter Reporter
	pub      Publisher
	log      *logger.Logger
}

// New creates a Scheduler. A non-positive interval uses DefaultInterval.
func New(interval time.Duration, idle IdleReader, capturer capture.Capturer, reporter Reporter, pub Publisher, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		idle:     idle,
		capturer: capturer,
		reporter: reporter,
		pub:      pub,
		log:      log,
	}
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run ticks until ctx is done. The first tick happens one interval after
// Run starts.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("capture scheduler started", zap.Duration("interval", s.interval))

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.Tick(ctx)
			if ctx.Err() != nil {
				return
			}
			timer.Reset(s.interval)
		}
	}
}

// Tick performs one capture attempt.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	if s.idle.IsIdle() {
		s.log.Debug("skipping screenshot while idle")
		s.publish(events.KindCaptureSkipped, SkipIdle)
		return TickSkippedIdle
	}

	img, err := s.capturer.Capture(ctx)
	if err != nil {
		s.log.Warn("screenshot failed", zap.Error(err))
		s.publish(events.KindCaptureSkipped, SkipCaptureFailed)
		return TickCaptureFailed
	}

	out := s.reporter.Send(ctx, api.ActionScreenshot, api.ScreenshotData{ImageBase64: img})
	if ctx.Err() != nil {
		return TickDiscarded
	}
	s.publish(events.KindScreenshotReport, out)
	if !out.OK() {
		return TickReportFailed
	}
	return TickReported
}

func (s *Scheduler) publish(kind events.Kind, payload any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(events.NewEvent(kind, payload))
}
