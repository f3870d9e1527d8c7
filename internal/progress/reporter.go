package progress

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Reporter periodically logs a summary of relay activity
type Reporter struct {
	tracker  *Tracker
	interval time.Duration
	logger   *zap.Logger
}

// NewReporter creates a reporter logging every interval
func NewReporter(tracker *Tracker, interval time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		tracker:  tracker,
		interval: interval,
		logger:   logger,
	}
}

// Run logs until ctx is done, then logs a final summary
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Report("Relay status")
		case <-ctx.Done():
			r.Report("Relay summary")
			return
		}
	}
}

// Report logs the current status once
func (r *Reporter) Report(msg string) {
	status := r.tracker.GetStatus()
	r.logger.Info(msg, Fields(status)...)
}

// Fields renders a status as log fields
func Fields(status Status) []zap.Field {
	return []zap.Field{
		zap.Int64("delivered", status.DeliveredFiles),
		zap.String("delivered_size", humanize.Bytes(uint64(status.DeliveredBytes))),
		zap.Int64("failed_attempts", status.FailedAttempts),
		zap.Int64("abandoned", status.AbandonedFiles),
		zap.Int64("delete_failures", status.DeleteFailures),
		zap.Int64("backlog", status.Backlog),
		zap.String("current_speed", FormatSpeed(status.CurrentSpeed)),
		zap.String("average_speed", FormatSpeed(status.AverageSpeed)),
		zap.Duration("uptime", time.Since(status.StartTime).Truncate(time.Second)),
	}
}

// FormatSpeed formats speed in human readable format
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "0 B/s"
	}
	return humanize.Bytes(uint64(bytesPerSecond)) + "/s"
}
