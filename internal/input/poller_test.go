package input

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

const step = 250 * time.Millisecond

// scripted returns the given readings in order. Past the end the counter
// keeps growing by step per call, as it would with nobody at the keyboard.
type scripted struct {
	mu       sync.Mutex
	readings []time.Duration
	errs     map[int]error
	calls    int
}

func (s *scripted) idle() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if err, ok := s.errs[i]; ok {
		return 0, err
	}
	if n := len(s.readings); i >= n {
		return s.readings[n-1] + time.Duration(i-n+1)*step, nil
	}
	return s.readings[i], nil
}

func (s *scripted) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls > len(s.readings)+1
}

// stepClock moves forward by step on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(step)
	return c.t
}

func runPoller(t *testing.T, s *scripted) int32 {
	t.Helper()
	p := NewPoller(s.idle, time.Millisecond, logger.Nop())
	p.now = (&stepClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}).now

	var inputs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, func() { inputs.Add(1) }) }()

	require.Eventually(t, s.done, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
	return inputs.Load()
}

func TestInputBetween(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name          string
		prev, cur, dt time.Duration
		want          bool
	}{
		{"nobody there", 100 * ms, 350 * ms, 250 * ms, false},
		{"counter reset", 350 * ms, 20 * ms, 250 * ms, true},
		{"input soon after a fresh reset", 10 * ms, 200 * ms, 250 * ms, true},
		{"counter within resolution", 10 * ms, 245 * ms, 250 * ms, false},
		{"late tick", 100 * ms, 500 * ms, 400 * ms, false},
		{"input during a late tick", 100 * ms, 300 * ms, 400 * ms, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inputBetween(tt.prev, tt.cur, tt.dt))
		})
	}
}

func TestPollerFiresOnInput(t *testing.T) {
	ms := time.Millisecond
	s := &scripted{readings: []time.Duration{
		100 * ms, // baseline
		350 * ms,
		600 * ms,
		40 * ms, // input
		290 * ms,
		10 * ms,  // input
		200 * ms, // input, although the counter went up
		450 * ms,
	}}
	assert.Equal(t, int32(3), runPoller(t, s))
}

func TestPollerSkipsFailedReadings(t *testing.T) {
	ms := time.Millisecond
	s := &scripted{
		readings: []time.Duration{500 * ms, 750 * ms, 0, 1250 * ms, 300 * ms, 550 * ms},
		errs:     map[int]error{2: errors.New("no display")},
	}
	// the gap over the failed read is 500ms, so 750ms -> 1250ms is no input
	assert.Equal(t, int32(1), runPoller(t, s))
}

func TestPollerUnsupported(t *testing.T) {
	p := NewPoller(nil, 0, logger.Nop())
	err := p.Run(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, DefaultSampleInterval, p.interval)
}

func TestPollerBaselineError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPoller(func() (time.Duration, error) { return 0, boom }, time.Millisecond, logger.Nop())
	assert.ErrorIs(t, p.Run(context.Background(), func() {}), boom)
}
