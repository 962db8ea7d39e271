// Package workpool runs fire-and-forget tasks on a fixed number of workers.
package workpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// Task is a unit of work. ctx is cancelled when the pool is closed.
type Task func(ctx context.Context)

type job struct {
	name string
	fn   Task
}

// Pool is a bounded executor: at most workers tasks run at once and at most
// queueSize wait. Submissions beyond that are dropped.
type Pool struct {
	log    *logger.Logger
	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group

	closeOnce sync.Once
}

// New starts a pool with the given number of workers.
func New(parent context.Context, log *logger.Logger, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)

	p := &Pool{
		log:    log,
		jobs:   make(chan job, queueSize),
		ctx:    gctx,
		cancel: cancel,
		g:      g,
	}
	for i := 0; i < workers; i++ {
		g.Go(p.work)
	}
	return p
}

func (p *Pool) work() error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case j := <-p.jobs:
			p.run(j)
		}
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", zap.String("task", j.name), zap.Any("panic", r))
		}
	}()
	j.fn(p.ctx)
}

// Submit queues fn without blocking. It reports false if the pool is closed
// or the queue is full.
func (p *Pool) Submit(name string, fn Task) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.jobs <- job{name: name, fn: fn}:
		return true
	default:
		p.log.Warn("worker pool saturated, dropping task", zap.String("task", name))
		return false
	}
}

// Close cancels running tasks, discards queued ones and waits for the
// workers to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		_ = p.g.Wait()
		for {
			select {
			case j := <-p.jobs:
				p.log.Debug("discarding queued task", zap.String("task", j.name))
			default:
				return
			}
		}
	})
}
