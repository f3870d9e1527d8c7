package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"filerelay/internal/metrics"
)

func TestCollectorsAreIndependent(t *testing.T) {
	// Private registries: constructing twice must not panic.
	a := metrics.New()
	b := metrics.New()
	require.NotSame(t, a, b)
}

func TestAttemptAndDeliveryCounters(t *testing.T) {
	c := metrics.New()

	c.AttemptStarted()
	c.AttemptFinished(10*time.Millisecond, errors.New("boom"))
	c.AttemptStarted()
	c.AttemptFinished(10*time.Millisecond, nil)
	c.IncDelivered(2048)
	c.IncDeleteFailed()

	status := c.GetProgressTracker().GetStatus()
	require.Equal(t, int64(1), status.DeliveredFiles)
	require.Equal(t, int64(2048), status.DeliveredBytes)
	require.Equal(t, int64(1), status.FailedAttempts)
	require.Equal(t, int64(1), status.DeleteFailures)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `relay_transfer_attempts_total{outcome="failure"} 1`)
	require.Contains(t, string(body), `relay_transfer_attempts_total{outcome="success"} 1`)
	require.Contains(t, string(body), `relay_files_total{outcome="delivered"} 1`)
	require.Contains(t, string(body), `relay_bytes_total 2048`)
	require.Contains(t, string(body), `relay_inflight_transfers 0`)
}

func TestQueueDepthGauge(t *testing.T) {
	c := metrics.New()
	depth := 7
	c.RegisterQueueDepth(func() int { return depth })

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Contains(t, rec.Body.String(), "relay_queue_depth 7")
	require.Equal(t, int64(7), c.GetProgressTracker().GetStatus().Backlog)
}
