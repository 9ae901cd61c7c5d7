package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/resilience"
)

func TestEvaluate_FailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.2})

	alerts := a.Evaluate(&Snapshot{RunsTotal: 10, RunsError: 5, FailureRate: 0.5, LookbackHours: 24, ErrorTypes: map[string]int{}})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "50.0%")
}

func TestEvaluate_FailureRateNeedsMinimumRuns(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.2})
	alerts := a.Evaluate(&Snapshot{RunsTotal: 2, RunsError: 2, FailureRate: 1, ErrorTypes: map[string]int{}})
	assert.Empty(t, alerts)
}

func TestEvaluate_Backlog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{BacklogThreshold: 100})

	assert.Empty(t, a.Evaluate(&Snapshot{EmbeddingBacklog: 100, ErrorTypes: map[string]int{}}))

	alerts := a.Evaluate(&Snapshot{EmbeddingBacklog: 101, ErrorTypes: map[string]int{}})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertEmbeddingBacklog, alerts[0].Type)
}

func TestEvaluate_CircuitOpen(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	alerts := a.Evaluate(&Snapshot{ErrorTypes: map[string]int{resilience.ClassCircuitOpen: 2}})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCircuitOpen, alerts[0].Type)
	assert.Equal(t, 2, alerts[0].Details["runs"])
}

func TestSendAlerts_Webhook(t *testing.T) {
	var mu sync.Mutex
	var got []Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
		if a.Type == AlertCircuitOpen {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRunFailureRate, Severity: "high"},
		{Type: AlertCircuitOpen, Severity: "high"},
	})

	assert.Equal(t, 1, sent)
	assert.Len(t, got, 2)
}

func TestSendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.Zero(t, a.SendAlerts(context.Background(), []Alert{{Type: AlertEmbeddingBacklog}}))
}
