package input

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// lockScript returns the given lock states in order, then repeats the last.
type lockScript struct {
	mu     sync.Mutex
	states []bool
	errs   map[int]error
	calls  int
}

func (s *lockScript) locked() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if err, ok := s.errs[i]; ok {
		return false, err
	}
	if i >= len(s.states) {
		i = len(s.states) - 1
	}
	return s.states[i], nil
}

func (s *lockScript) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls > len(s.states)+1
}

type sessionLog struct {
	mu  sync.Mutex
	got []string
}

func (l *sessionLog) add(s string) func() {
	return func() {
		l.mu.Lock()
		l.got = append(l.got, s)
		l.mu.Unlock()
	}
}

func runWatcher(t *testing.T, s *lockScript) []string {
	t.Helper()
	w := NewSessionWatcher(s.locked, time.Millisecond, logger.Nop())

	var l sessionLog
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx, l.add("lock"), l.add("unlock")) }()

	require.Eventually(t, s.done, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.got
}

func TestSessionWatcherReportsChanges(t *testing.T) {
	s := &lockScript{states: []bool{false, false, true, true, false, true, false}}
	assert.Equal(t, []string{"lock", "unlock", "lock", "unlock"}, runWatcher(t, s))
}

func TestSessionWatcherStartsLocked(t *testing.T) {
	s := &lockScript{states: []bool{true, true, false}}
	assert.Equal(t, []string{"lock", "unlock"}, runWatcher(t, s))
}

func TestSessionWatcherSkipsFailedReadings(t *testing.T) {
	s := &lockScript{
		states: []bool{false, true, false, true},
		errs:   map[int]error{2: errors.New("access denied")},
	}
	// the failed read does not count as an unlock
	assert.Equal(t, []string{"lock"}, runWatcher(t, s))
}

func TestSessionWatcherUnsupported(t *testing.T) {
	w := NewSessionWatcher(nil, 0, logger.Nop())
	assert.ErrorIs(t, w.Run(context.Background(), func() {}, func() {}), ErrUnsupported)
	assert.Equal(t, DefaultSessionInterval, w.interval)
}

func TestSessionWatcherBaselineError(t *testing.T) {
	boom := errors.New("boom")
	w := NewSessionWatcher(func() (bool, error) { return false, boom }, time.Millisecond, logger.Nop())
	assert.ErrorIs(t, w.Run(context.Background(), func() {}, func() {}), boom)
}
