package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"filerelay/internal/progress"
)

func TestTrackerCounts(t *testing.T) {
	tr := progress.NewTracker()
	tr.AddDelivered(1000)
	tr.AddDelivered(500)
	tr.AddFailedAttempt()
	tr.AddFailedAttempt()
	tr.AddAbandoned()
	tr.AddDeleteFailure()
	tr.SetBacklogFunc(func() int { return 3 })

	s := tr.GetStatus()
	require.Equal(t, int64(2), s.DeliveredFiles)
	require.Equal(t, int64(1500), s.DeliveredBytes)
	require.Equal(t, int64(2), s.FailedAttempts)
	require.Equal(t, int64(1), s.AbandonedFiles)
	require.Equal(t, int64(1), s.DeleteFailures)
	require.Equal(t, int64(3), s.Backlog)
	require.Greater(t, s.AverageSpeed, 0.0)
}

func TestFormatSpeed(t *testing.T) {
	require.Equal(t, "0 B/s", progress.FormatSpeed(0))
	require.Equal(t, "2.0 kB/s", progress.FormatSpeed(2000))
}

func TestReporterLogsFinalSummaryOnCancel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tr := progress.NewTracker()
	tr.AddDelivered(42)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		progress.NewReporter(tr, time.Hour, zap.New(core)).Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	entries := logs.FilterMessage("Relay summary").All()
	require.Len(t, entries, 1)
	require.Equal(t, int64(1), entries[0].ContextMap()["delivered"])
}
