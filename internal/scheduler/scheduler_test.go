package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifruncillo/timetrack-agent/internal/api"
	"github.com/ifruncillo/timetrack-agent/internal/events"
	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

type fakeIdle struct{ idle atomic.Bool }

func (f *fakeIdle) IsIdle() bool { return f.idle.Load() }

type fakeCapturer struct {
	calls   atomic.Int32
	err     error
	delay   time.Duration
	running atomic.Int32
	overlap atomic.Bool
}

func (f *fakeCapturer) Capture(ctx context.Context) (string, error) {
	if f.running.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.running.Add(-1)
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return "aW1n", nil
}

type fakeReporter struct {
	mu      sync.Mutex
	actions []string
	data    []any
	fail    atomic.Bool
}

func (f *fakeReporter) Send(_ context.Context, action string, data any) api.Outcome {
	f.mu.Lock()
	f.actions = append(f.actions, action)
	f.data = append(f.data, data)
	f.mu.Unlock()
	if f.fail.Load() {
		return api.Outcome{Action: action, StatusCode: 503, Err: api.ErrStatus}
	}
	return api.Outcome{Action: action, StatusCode: 200, Body: []byte(`{"success":true}`)}
}

func (f *fakeReporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.actions)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(e events.Event) bool {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
	return true
}

func (f *fakePublisher) all() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

func TestTickReports(t *testing.T) {
	grab, rep, pub := &fakeCapturer{}, &fakeReporter{}, &fakePublisher{}
	s := New(time.Minute, &fakeIdle{}, grab, rep, pub, logger.Nop())

	assert.Equal(t, TickReported, s.Tick(context.Background()))
	require.Equal(t, []string{api.ActionScreenshot}, rep.actions)
	assert.Equal(t, api.ScreenshotData{ImageBase64: "aW1n"}, rep.data[0])

	evs := pub.all()
	require.Len(t, evs, 1)
	assert.Equal(t, events.KindScreenshotReport, evs[0].Kind)
	assert.True(t, evs[0].Payload.(api.Outcome).OK())
}

func TestTickSkipsWhileIdle(t *testing.T) {
	idle := &fakeIdle{}
	idle.idle.Store(true)
	grab, rep, pub := &fakeCapturer{}, &fakeReporter{}, &fakePublisher{}
	s := New(time.Minute, idle, grab, rep, pub, logger.Nop())

	assert.Equal(t, TickSkippedIdle, s.Tick(context.Background()))
	assert.Zero(t, grab.calls.Load())
	assert.Zero(t, rep.count())
	require.Len(t, pub.all(), 1)
	assert.Equal(t, SkipIdle, pub.all()[0].Payload)
}

func TestTickCaptureFailureSkipsReport(t *testing.T) {
	grab := &fakeCapturer{err: errors.New("no display")}
	rep, pub := &fakeReporter{}, &fakePublisher{}
	s := New(time.Minute, &fakeIdle{}, grab, rep, pub, logger.Nop())

	assert.Equal(t, TickCaptureFailed, s.Tick(context.Background()))
	assert.Zero(t, rep.count())
	require.Len(t, pub.all(), 1)
	assert.Equal(t, events.KindCaptureSkipped, pub.all()[0].Kind)

	// the next tick is unaffected
	grab.err = nil
	assert.Equal(t, TickReported, s.Tick(context.Background()))
}

func TestTickReportFailure(t *testing.T) {
	rep, pub := &fakeReporter{}, &fakePublisher{}
	rep.fail.Store(true)
	s := New(time.Minute, &fakeIdle{}, &fakeCapturer{}, rep, pub, logger.Nop())

	assert.Equal(t, TickReportFailed, s.Tick(context.Background()))
	out := pub.all()[0].Payload.(api.Outcome)
	assert.ErrorIs(t, out.Err, api.ErrStatus)
}

func TestTickDiscardsAfterCancel(t *testing.T) {
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	rep := reporterFunc(func(context.Context, string, any) api.Outcome {
		cancel()
		return api.Outcome{Err: api.ErrTransport}
	})
	s := New(time.Minute, &fakeIdle{}, &fakeCapturer{}, rep, pub, logger.Nop())

	assert.Equal(t, TickDiscarded, s.Tick(ctx))
	assert.Empty(t, pub.all())
}

type reporterFunc func(ctx context.Context, action string, data any) api.Outcome

func (f reporterFunc) Send(ctx context.Context, action string, data any) api.Outcome {
	return f(ctx, action, data)
}

func TestRunTickCount(t *testing.T) {
	grab, rep := &fakeCapturer{}, &fakeReporter{}
	s := New(200*time.Millisecond, &fakeIdle{}, grab, rep, nil, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 900*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	// ticks at 200, 400, 600, 800ms
	n := rep.count()
	assert.GreaterOrEqual(t, n, 4)
	assert.LessOrEqual(t, n, 5)
}

func TestRunNeverCapturesWhileIdle(t *testing.T) {
	idle := &fakeIdle{}
	idle.idle.Store(true)
	grab, rep := &fakeCapturer{}, &fakeReporter{}
	s := New(10*time.Millisecond, idle, grab, rep, nil, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.Zero(t, grab.calls.Load())
	assert.Zero(t, rep.count())
}

func TestRunDoesNotOverlap(t *testing.T) {
	grab := &fakeCapturer{delay: 30 * time.Millisecond}
	s := New(5*time.Millisecond, &fakeIdle{}, grab, &fakeReporter{}, nil, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.False(t, grab.overlap.Load())
	assert.Greater(t, grab.calls.Load(), int32(1))
}

func TestNewDefaultInterval(t *testing.T) {
	s := New(0, &fakeIdle{}, &fakeCapturer{}, &fakeReporter{}, nil, logger.Nop())
	assert.Equal(t, DefaultInterval, s.interval)
}

func TestTickResultString(t *testing.T) {
	assert.Equal(t, "skipped_idle", TickSkippedIdle.String())
	assert.Equal(t, "reported", TickReported.String())
	assert.Equal(t, "discarded", TickDiscarded.String())
}
