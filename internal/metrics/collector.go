package metrics

import (
	"net/http"
	"time"

	"filerelay/internal/progress"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes relay metrics
type Collector struct {
	registry        *prometheus.Registry
	attemptsTotal   *prometheus.CounterVec
	filesTotal      *prometheus.CounterVec
	deleteFailures  prometheus.Counter
	bytesTotal      prometheus.Counter
	inflight        prometheus.Gauge
	duration        prometheus.Histogram
	progressTracker *progress.Tracker
}

// New creates a collector backed by its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_transfer_attempts_total",
				Help: "Transfer attempts by outcome",
			},
			[]string{"outcome"},
		),
		filesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_files_total",
				Help: "Files that left the queue, by final outcome",
			},
			[]string{"outcome"},
		),
		deleteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_delete_failures_total",
				Help: "Local deletions that failed after a successful transfer",
			},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_bytes_total",
				Help: "Total bytes delivered",
			},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_inflight_transfers",
				Help: "Number of transfer commands currently running",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_transfer_duration_seconds",
				Help:    "Duration of a single transfer attempt",
				Buckets: prometheus.DefBuckets,
			},
		),
		progressTracker: progress.NewTracker(),
	}

	c.registry.MustRegister(
		c.attemptsTotal,
		c.filesTotal,
		c.deleteFailures,
		c.bytesTotal,
		c.inflight,
		c.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// RegisterQueueDepth exposes the backlog reported by depth
func (c *Collector) RegisterQueueDepth(depth func() int) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Paths waiting for a free worker",
		},
		func() float64 { return float64(depth()) },
	))
	c.progressTracker.SetBacklogFunc(depth)
}

// AttemptStarted marks a transfer as in flight
func (c *Collector) AttemptStarted() {
	c.inflight.Inc()
}

// AttemptFinished records the end of a transfer attempt
func (c *Collector) AttemptFinished(d time.Duration, err error) {
	c.inflight.Dec()
	c.duration.Observe(d.Seconds())
	if err != nil {
		c.attemptsTotal.WithLabelValues("failure").Inc()
		c.progressTracker.AddFailedAttempt()
		return
	}
	c.attemptsTotal.WithLabelValues("success").Inc()
}

// IncDelivered counts a delivered file of the given size
func (c *Collector) IncDelivered(bytes int64) {
	c.filesTotal.WithLabelValues("delivered").Inc()
	c.bytesTotal.Add(float64(bytes))
	c.progressTracker.AddDelivered(bytes)
}

// IncAbandoned counts a file given up on by a bounded retry policy
func (c *Collector) IncAbandoned() {
	c.filesTotal.WithLabelValues("abandoned").Inc()
	c.progressTracker.AddAbandoned()
}

// IncDeleteFailed counts a failed local deletion
func (c *Collector) IncDeleteFailed() {
	c.deleteFailures.Inc()
	c.progressTracker.AddDeleteFailure()
}

// Handler serves the metrics in the prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// GetProgressTracker returns the progress tracker
func (c *Collector) GetProgressTracker() *progress.Tracker {
	return c.progressTracker
}
