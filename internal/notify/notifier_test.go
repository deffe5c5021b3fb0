package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pipegate-dev/pipegate/internal/config"
	"github.com/pipegate-dev/pipegate/internal/domain/values"
	"github.com/pipegate-dev/pipegate/internal/engine"
	"github.com/pipegate-dev/pipegate/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry(n *Notifier) *Notifier {
	n.retry = &config.RetrySpec{Attempts: 2, Backoff: "none", Delay: time.Millisecond}
	return n
}

func Test_BuildReport(t *testing.T) {
	result := engine.NewRunResult("service-ci", "1.0.0")
	result.AddStageOutcome(engine.StageOutcome{ID: "security", Status: values.StatusFailure, Required: true})
	result.Finalize()
	result.Gate = gate.Evaluate(result.StageResults(), gate.Policy{})

	report := BuildReport(result)

	assert.Equal(t, "service-ci", report.Pipeline)
	assert.Equal(t, result.RunID.String(), report.RunID)
	assert.Equal(t, "fail", report.Overall)
	assert.Equal(t, []string{"security"}, report.Blocking)
	assert.Contains(t, report.Body, "Overall: FAIL")
}

func Test_Send(t *testing.T) {
	var received Report
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := fastRetry(New(server.URL, time.Second, testLogger()))
	err := notifier.Send(context.Background(), Report{Pipeline: "service-ci", Overall: "pass"})
	require.NoError(t, err)

	assert.Equal(t, "service-ci", received.Pipeline)
	assert.Equal(t, "pass", received.Overall)
}

func Test_Send_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := fastRetry(New(server.URL, time.Second, testLogger()))
	err := notifier.Send(context.Background(), Report{Pipeline: "p"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func Test_Send_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := fastRetry(New(server.URL, time.Second, testLogger()))
	err := notifier.Send(context.Background(), Report{Pipeline: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func Test_Send_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	notifier := fastRetry(New(server.URL, time.Second, testLogger()))
	err := notifier.Send(ctx, Report{Pipeline: "p"})
	assert.Error(t, err)
}

func Test_Send_UnreachableEndpoint(t *testing.T) {
	notifier := fastRetry(New("http://127.0.0.1:1/nope", 100*time.Millisecond, testLogger()))
	err := notifier.Send(context.Background(), Report{Pipeline: "p"})
	assert.Error(t, err)
}
