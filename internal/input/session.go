package input

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

const DefaultSessionInterval = time.Second

// SessionSource delivers onLock and onUnlock as the user session is locked
// and unlocked, until ctx is done.
type SessionSource interface {
	Run(ctx context.Context, onLock, onUnlock func()) error
}

// LockedFunc reports whether the user session is currently locked.
type LockedFunc func() (bool, error)

// SessionWatcher samples a LockedFunc and reports every change.
type SessionWatcher struct {
	locked   LockedFunc
	interval time.Duration
	log      *logger.Logger
}

// NewSessionWatcher creates a watcher. A zero interval uses
// DefaultSessionInterval.
func NewSessionWatcher(locked LockedFunc, interval time.Duration, log *logger.Logger) *SessionWatcher {
	if interval <= 0 {
		interval = DefaultSessionInterval
	}
	return &SessionWatcher{locked: locked, interval: interval, log: log}
}

// Run implements SessionSource. A session that is already locked when Run
// starts is reported right away.
func (w *SessionWatcher) Run(ctx context.Context, onLock, onUnlock func()) error {
	if w.locked == nil {
		return ErrUnsupported
	}
	prev, err := w.locked()
	if err != nil {
		return err
	}
	if prev {
		w.log.Info("session locked")
		onLock()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur, err := w.locked()
			if err != nil {
				failures++
				if failures == 1 {
					w.log.Warn("reading session lock state failed", zap.Error(err))
				}
				continue
			}
			failures = 0
			if cur == prev {
				continue
			}
			prev = cur
			if cur {
				w.log.Info("session locked")
				onLock()
			} else {
				w.log.Info("session unlocked")
				onUnlock()
			}
		}
	}
}
