package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mindshare-cli/internal/config"
	"github.com/sells-group/mindshare-cli/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.25,
	}
	checker := NewChecker(newTestCollector(&mockRunLister{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(newTestCollector(&mockRunLister{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{
		CheckIntervalSecs: 0,
	})
	assert.NotNil(t, checker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.25,
	}
	lister := &mockRunLister{runs: []model.Run{
		finishedRun(model.RunStatusFailed, time.Hour, 10, 10, 0),
		finishedRun(model.RunStatusFailed, 2*time.Hour, 10, 10, 0),
		finishedRun(model.RunStatusFailed, 3*time.Hour, 10, 10, 0),
	}}

	alerts := NewChecker(newTestCollector(lister), NewAlerter(cfg), cfg).Check(context.Background())
	require.Len(t, alerts, 2)
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_RepeatAlertsSentOnce(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.25,
	}
	lister := &mockRunLister{runs: []model.Run{
		finishedRun(model.RunStatusInterrupted, time.Hour, 10, 0, 1),
	}}
	checker := NewChecker(newTestCollector(lister), NewAlerter(cfg), cfg)

	// no_complete_run fires, then keeps firing.
	require.Len(t, checker.Check(context.Background()), 1)
	require.Len(t, checker.Check(context.Background()), 1)
	assert.Equal(t, int32(1), received.Load())

	// A complete run clears it; a later regression sends it again.
	lister.runs = append(lister.runs, finishedRun(model.RunStatusComplete, 30*time.Minute, 10, 0, 1))
	assert.Empty(t, checker.Check(context.Background()))

	lister.runs = []model.Run{finishedRun(model.RunStatusFailed, time.Hour, 10, 10, 0)}
	require.Len(t, checker.Check(context.Background()), 1)
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	lister := &mockRunLister{listErr: errors.New("boom")}

	alerts := NewChecker(newTestCollector(lister), NewAlerter(cfg), cfg).Check(context.Background())
	assert.Nil(t, alerts)
}
