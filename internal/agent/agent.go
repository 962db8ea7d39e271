// Package agent wires the idle detector, capture scheduler, reporting and
// status indicator together and owns their lifecycle.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ifruncillo/timetrack-agent/internal/activity"
	"github.com/ifruncillo/timetrack-agent/internal/api"
	"github.com/ifruncillo/timetrack-agent/internal/capture"
	"github.com/ifruncillo/timetrack-agent/internal/events"
	"github.com/ifruncillo/timetrack-agent/internal/heartbeat"
	"github.com/ifruncillo/timetrack-agent/internal/idle"
	"github.com/ifruncillo/timetrack-agent/internal/input"
	"github.com/ifruncillo/timetrack-agent/internal/logger"
	"github.com/ifruncillo/timetrack-agent/internal/metrics"
	"github.com/ifruncillo/timetrack-agent/internal/scheduler"
	"github.com/ifruncillo/timetrack-agent/internal/ui"
	"github.com/ifruncillo/timetrack-agent/internal/workpool"
)

// RunState is the coordinator lifecycle: NotStarted -> Running -> Stopped.
type RunState int

const (
	NotStarted RunState = iota
	Running
	Stopped
)

func (s RunState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

var (
	ErrInvalidState = errors.New("agent: invalid state for this operation")
	ErrMissingDep   = errors.New("agent: missing dependency")
)

const busSize = 64

// Reporter sends one report. *api.Client satisfies it.
type Reporter interface {
	Send(ctx context.Context, action string, data any) api.Outcome
}

// Options are the timing and sizing knobs. Zero values take package
// defaults.
type Options struct {
	ScreenshotInterval time.Duration
	IdleThreshold      time.Duration
	IdlePoll           time.Duration
	HeartbeatInterval  time.Duration
	Version            string
	Workers            int
	QueueSize          int
	MetricsAddr        string
}

// Deps are the agent's collaborators. Session, Metrics and Now are
// optional.
type Deps struct {
	Input     input.Source
	Session   input.SessionSource
	Capturer  capture.Capturer
	Reporter  Reporter
	Indicator ui.Indicator
	Metrics   *metrics.Tracker
	Log       *logger.Logger
	Now       func() time.Time
}

type Agent struct {
	opts Options
	deps Deps
	log  *logger.Logger

	mu       sync.Mutex
	state    RunState
	cancel   context.CancelFunc
	loops    errgroup.Group
	pool     *workpool.Pool
	bus      *events.Bus
	detector *idle.Detector
	server   *metrics.Server

	stopOnce sync.Once
	done     chan struct{}
}

// New checks the dependencies and timing. Nothing runs until Start.
func New(opts Options, deps Deps) (*Agent, error) {
	switch {
	case deps.Input == nil:
		return nil, fmt.Errorf("%w: input source", ErrMissingDep)
	case deps.Capturer == nil:
		return nil, fmt.Errorf("%w: capturer", ErrMissingDep)
	case deps.Reporter == nil:
		return nil, fmt.Errorf("%w: reporter", ErrMissingDep)
	case deps.Indicator == nil:
		return nil, fmt.Errorf("%w: indicator", ErrMissingDep)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.IdleThreshold == 0 {
		opts.IdleThreshold = idle.DefaultThreshold
	}
	if opts.IdlePoll == 0 {
		opts.IdlePoll = idle.DefaultPollInterval
	}
	if opts.IdlePoll < 0 || opts.IdlePoll >= opts.IdleThreshold {
		return nil, fmt.Errorf("%w (poll %s, threshold %s)", idle.ErrBadTiming, opts.IdlePoll, opts.IdleThreshold)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}

	return &Agent{
		opts: opts,
		deps: deps,
		log:  deps.Log.Named("agent"),
		done: make(chan struct{}),
	}, nil
}

// State returns the lifecycle state.
func (a *Agent) State() RunState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IdleState returns the detector state, Active before Start.
func (a *Agent) IdleState() idle.State {
	a.mu.Lock()
	d := a.detector
	a.mu.Unlock()
	if d == nil {
		return idle.Active
	}
	return d.State()
}

// Done is closed once Stop has finished.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// Start launches every loop. It fails with ErrInvalidState unless the agent
// has never been started or stopped. Cancelling ctx stops the agent.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != NotStarted {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, a.state)
	}

	log := a.deps.Log
	runCtx, cancel := context.WithCancel(ctx)

	clock := activity.NewClock(a.deps.Now)
	bus := events.NewBus(log.Named("events"), busSize)
	detector, err := idle.NewDetector(idle.Config{
		Threshold:    a.opts.IdleThreshold,
		PollInterval: a.opts.IdlePoll,
	}, clock, bus, log.Named("idle"), a.deps.Now)
	if err != nil {
		cancel()
		return err
	}
	pool := workpool.New(runCtx, log.Named("pool"), a.opts.Workers, a.opts.QueueSize)
	sched := scheduler.New(a.opts.ScreenshotInterval, detector, a.deps.Capturer, a.deps.Reporter, bus, log.Named("scheduler"))
	beater := heartbeat.New(a.opts.HeartbeatInterval, a.opts.Version, a.deps.Reporter, bus, log.Named("heartbeat"))

	a.cancel, a.pool, a.bus, a.detector = cancel, pool, bus, detector
	a.subscribe()

	if a.deps.Metrics != nil && a.opts.MetricsAddr != "" {
		srv, err := metrics.Listen(a.opts.MetricsAddr, a.deps.Metrics, log.Named("metrics"))
		if err != nil {
			a.log.Warn("metrics endpoint disabled", zap.String("addr", a.opts.MetricsAddr), zap.Error(err))
		} else {
			a.server = srv
		}
	}

	a.deps.Indicator.SetStatus(ui.StatusActive)

	a.loops.Go(func() error {
		bus.Run(runCtx)
		return nil
	})
	a.loops.Go(func() error {
		if err := a.deps.Input.Run(runCtx, detector.RecordInput); err != nil {
			a.log.Error("input monitoring unavailable", zap.Error(err))
		}
		return nil
	})
	if a.deps.Session != nil {
		a.loops.Go(func() error {
			err := a.deps.Session.Run(runCtx, detector.SessionLocked, detector.SessionUnlocked)
			switch {
			case errors.Is(err, input.ErrUnsupported):
				a.log.Info("session lock detection unavailable")
			case err != nil:
				a.log.Warn("session lock detection stopped", zap.Error(err))
			}
			return nil
		})
	}
	a.loops.Go(func() error {
		detector.Run(runCtx)
		return nil
	})
	a.loops.Go(func() error {
		sched.Run(runCtx)
		return nil
	})
	a.loops.Go(func() error {
		beater.Run(runCtx)
		return nil
	})

	a.state = Running
	a.log.Info("agent started",
		zap.Duration("screenshot_interval", sched.Interval()),
		zap.Duration("idle_threshold", detector.Threshold()))

	go func() {
		select {
		case <-runCtx.Done():
			a.Stop()
		case <-a.done:
		}
	}()
	return nil
}

func (a *Agent) subscribe() {
	ind := a.deps.Indicator

	a.bus.Subscribe(string(events.KindIdleStart), func(context.Context, events.Event) {
		ind.SetStatus(ui.StatusIdle)
		a.submitReport(api.ActionIdleStart)
	})
	a.bus.Subscribe(string(events.KindIdleEnd), func(context.Context, events.Event) {
		ind.SetStatus(ui.StatusActive)
		a.submitReport(api.ActionIdleEnd)
	})
	a.bus.Subscribe(string(events.KindScreenshotReport), func(_ context.Context, e events.Event) {
		out, ok := e.Payload.(api.Outcome)
		if !ok || a.detector.IsIdle() {
			return
		}
		if out.OK() {
			ind.SetStatus(ui.StatusActive)
		} else {
			ind.SetStatus(ui.StatusDisconnected)
		}
	})
	if a.deps.Metrics != nil {
		a.bus.Subscribe("*", a.deps.Metrics.Observe)
	}
}

// submitReport hands an idle report to the pool so the dispatcher never
// waits on the network.
func (a *Agent) submitReport(action string) {
	bus, reporter := a.bus, a.deps.Reporter
	a.pool.Submit(action, func(ctx context.Context) {
		out := reporter.Send(ctx, action, nil)
		if ctx.Err() != nil {
			return
		}
		bus.Publish(events.NewEvent(events.KindIdleReport, out))
	})
}

// Stop cancels every loop, waits for them, drops in-flight reports and
// marks the indicator offline. It may be called any number of times from
// any goroutine except a bus subscriber.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		prev := a.state
		a.state = Stopped
		a.mu.Unlock()

		if prev == Running {
			a.cancel()
			_ = a.loops.Wait()
			a.pool.Close()
			if a.server != nil {
				a.server.Shutdown()
			}
		}

		a.deps.Indicator.SetStatus(ui.StatusOffline)
		a.deps.Indicator.Stop()
		a.log.Info("agent stopped", zap.Stringer("previous_state", prev))
		close(a.done)
	})
}
