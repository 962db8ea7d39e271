// Package events provides the in-process bus that carries state changes
// from the idle detector and the capture scheduler to their observers.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// Kind names an event. Subscriptions match a Kind exactly, by prefix
// ("report.*"), or all kinds ("*").
type Kind string

const (
	KindIdleStart        Kind = "idle.start"
	KindIdleEnd          Kind = "idle.end"
	KindScreenshotReport Kind = "report.screenshot"
	KindIdleReport       Kind = "report.idle"
	KindHeartbeatReport  Kind = "report.heartbeat"
	KindCaptureSkipped   Kind = "capture.skipped"
)

// Event is a message on the bus.
type Event struct {
	ID      string
	Kind    Kind
	At      time.Time
	Payload any
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(kind Kind, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		At:      time.Now(),
		Payload: payload,
	}
}

// Handler receives events. Handlers run one at a time on the dispatcher
// goroutine and must return quickly; hand I/O off to a worker pool.
type Handler func(ctx context.Context, e Event)

type subscription struct {
	pattern string
	handler Handler
}

func (s subscription) matches(k Kind) bool {
	switch {
	case s.pattern == "*":
		return true
	case strings.HasSuffix(s.pattern, ".*"):
		return strings.HasPrefix(string(k), strings.TrimSuffix(s.pattern, "*"))
	default:
		return s.pattern == string(k)
	}
}

// Bus delivers events to subscribers in publish order.
type Bus struct {
	log   *logger.Logger
	queue chan Event

	mu   sync.RWMutex
	subs []subscription
}

// NewBus creates a bus holding up to size undelivered events.
func NewBus(log *logger.Logger, size int) *Bus {
	if size <= 0 {
		size = 64
	}
	return &Bus{
		log:   log,
		queue: make(chan Event, size),
	}
}

// Subscribe registers h for events matching pattern.
func (b *Bus) Subscribe(pattern string, h Handler) {
	b.mu.Lock()
	b.subs = append(b.subs, subscription{pattern: pattern, handler: h})
	b.mu.Unlock()
}

// Publish enqueues e without blocking. It reports false when the queue is
// full and the event was dropped.
func (b *Bus) Publish(e Event) bool {
	select {
	case b.queue <- e:
		return true
	default:
		b.log.Warn("event queue full, dropping event",
			zap.String("kind", string(e.Kind)),
			zap.String("event_id", e.ID))
		return false
	}
}

// Run dispatches events until ctx is done. Events still queued at that
// point are discarded.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.queue:
			b.dispatch(ctx, e)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(e.Kind) {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(ctx, e)
	}
	b.log.Debug("dispatched event",
		zap.String("kind", string(e.Kind)),
		zap.String("event_id", e.ID),
		zap.Int("subscribers", len(subs)))
}
