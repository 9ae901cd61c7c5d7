package monitoring

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/resilience"
)

func TestObserveRun(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveRun(&model.PipelineRun{Kind: model.RunKindIngest, Status: model.RunStatusSuccess, Processed: 4, DurationMs: 1500})
	m.ObserveRun(&model.PipelineRun{Kind: model.RunKindIngest, Status: model.RunStatusError, DurationMs: 10})
	m.ObserveRun(&model.PipelineRun{Kind: model.RunKindBriefing, Status: model.RunStatusNoRecentActivity})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ingest", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ingest", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("briefing", "no_recent_activity")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.UnitsProcessed.WithLabelValues("ingest")))
}

func TestObserveBreaker(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveBreaker("firecrawl", resilience.CircuitClosed, resilience.CircuitOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitState.WithLabelValues("firecrawl")))

	m.ObserveBreaker("firecrawl", resilience.CircuitOpen, resilience.CircuitHalfOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitState.WithLabelValues("firecrawl")))
}

func TestHandler_Exposition(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveRun(&model.PipelineRun{Kind: model.RunKindEmbed, Status: model.RunStatusSuccess, Processed: 2})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `account_intel_pipeline_runs_total{kind="embed",status="success"} 1`)
}
