package metrics

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

func TestRecordReport(t *testing.T) {
	tr := NewTracker()
	tr.RecordReport("screenshot", true)
	tr.RecordReport("screenshot", true)
	tr.RecordReport("screenshot", false)
	tr.RecordReport("idle_start", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(tr.reports.WithLabelValues("screenshot", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.reports.WithLabelValues("screenshot", "failed")))

	s := tr.Stats()
	assert.Equal(t, 3, s.ReportsSent)
	assert.Equal(t, 1, s.ReportsFailed)
	assert.Equal(t, 2, s.Screenshots)
}

func TestRecordSkipAndTransition(t *testing.T) {
	tr := NewTracker()
	tr.RecordSkip("idle")
	tr.RecordSkip("idle")
	tr.RecordSkip("capture_failed")
	tr.RecordTransition("idle", 10*time.Minute)
	tr.RecordTransition("active", 90*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(tr.skips.WithLabelValues("idle")))
	assert.Equal(t, 90.0, testutil.ToFloat64(tr.idleSeconds))

	s := tr.Stats()
	assert.Equal(t, 2, s.SkippedIdle)
	assert.Equal(t, 1, s.CaptureFailed)
	assert.Equal(t, 1, s.IdlePeriods)
	assert.Equal(t, 90*time.Second, s.TotalIdle)
	assert.Greater(t, s.SessionRuntime, time.Duration(0))
}

func TestServerExposesMetrics(t *testing.T) {
	tr := NewTracker()
	tr.RecordReport("idle_end", true)

	srv, err := Listen("127.0.0.1:0", tr, logger.Nop())
	require.NoError(t, err)
	defer srv.Shutdown()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `timetrack_agent_reports_total{action="idle_end",result="ok"} 1`)
}
