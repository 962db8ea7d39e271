package metrics

import (
	"context"

	"github.com/ifruncillo/timetrack-agent/internal/api"
	"github.com/ifruncillo/timetrack-agent/internal/events"
	"github.com/ifruncillo/timetrack-agent/internal/idle"
	"github.com/ifruncillo/timetrack-agent/internal/scheduler"
)

// Observe is a bus handler that feeds the tracker. Subscribe it to "*".
func (t *Tracker) Observe(_ context.Context, e events.Event) {
	switch p := e.Payload.(type) {
	case api.Outcome:
		t.RecordReport(p.Action, p.OK())
	case scheduler.SkipReason:
		t.RecordSkip(string(p))
	case idle.Transition:
		t.RecordTransition(p.To.String(), p.IdleFor)
	}
}
