// Package heartbeat periodically tells the collector the agent is alive.
package heartbeat

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/api"
	"github.com/ifruncillo/timetrack-agent/internal/events"
	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// Reporter sends one report. *api.Client satisfies it.
type Reporter interface {
	Send(ctx context.Context, action string, data any) api.Outcome
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(e events.Event) bool
}

type Beater struct {
	interval time.Duration
	data     api.HeartbeatData
	reporter Reporter
	pub      Publisher
	log      *logger.Logger
}

// New creates a Beater that reports version and the local hostname.
func New(interval time.Duration, version string, reporter Reporter, pub Publisher, log *logger.Logger) *Beater {
	host, err := os.Hostname()
	if err != nil {
		log.Debug("hostname unavailable", zap.Error(err))
	}
	return &Beater{
		interval: interval,
		data: api.HeartbeatData{
			AgentVersion: orDefault(strings.TrimSpace(version), "dev"),
			Hostname:     host,
		},
		reporter: reporter,
		pub:      pub,
		log:      log,
	}
}

// Run sends a heartbeat immediately and then every interval until ctx is
// done. A non-positive interval disables heartbeats and Run returns at once.
func (b *Beater) Run(ctx context.Context) {
	if b.interval <= 0 {
		return
	}
	b.log.Info("heartbeat started", zap.Duration("interval", b.interval))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.Beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Beat(ctx)
		}
	}
}

// Beat sends a single heartbeat. The outcome is published unless ctx was
// cancelled while the request was in flight.
func (b *Beater) Beat(ctx context.Context) api.Outcome {
	out := b.reporter.Send(ctx, api.ActionHeartbeat, b.data)
	if ctx.Err() == nil && b.pub != nil {
		b.pub.Publish(events.NewEvent(events.KindHeartbeatReport, out))
	}
	return out
}

func orDefault(s, d string) string {
	if s == "" {
		return d
	}
	return s
}
