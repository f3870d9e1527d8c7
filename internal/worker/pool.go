package worker

import (
	"context"
	"os"
	"sync"

	"filerelay/internal/journal"
	"filerelay/internal/metrics"
	"filerelay/internal/retry"
	"filerelay/internal/transport"

	"go.uber.org/zap"
)

// Pool manages a fixed number of delivery workers sharing one source
type Pool struct {
	size      int
	config    Config
	source    Source
	transport transport.Client
	journal   journal.Store
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewPool creates a new worker pool
func NewPool(
	size int,
	config Config,
	source Source,
	client transport.Client,
	journalStore journal.Store,
	metricsCollector *metrics.Collector,
	logger *zap.Logger,
) *Pool {
	if config.Policy == nil {
		config.Policy = retry.Fixed{Delay: retry.DefaultDelay}
	}
	if config.Remove == nil {
		config.Remove = os.Remove
	}
	if journalStore == nil {
		journalStore = journal.Nop{}
	}
	if metricsCollector == nil {
		metricsCollector = metrics.New()
	}

	return &Pool{
		size:      size,
		config:    config,
		source:    source,
		transport: client,
		journal:   journalStore,
		metrics:   metricsCollector,
		logger:    logger,
	}
}

// Start launches the workers. They run until ctx is done.
func (p *Pool) Start(ctx context.Context, wg *sync.WaitGroup) {
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go p.worker(ctx, i, wg)
	}
}

func (p *Pool) worker(ctx context.Context, id int, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Debug("Worker started")

	processor := &TaskProcessor{
		config:    p.config,
		transport: p.transport,
		journal:   p.journal,
		metrics:   p.metrics,
		logger:    logger,
	}

	for {
		path, err := p.source.Pop(ctx)
		if err != nil {
			logger.Debug("Worker stopped", zap.Error(err))
			return
		}
		if ctx.Err() != nil {
			// Left on disk for the next recovery scan.
			return
		}

		result := processor.Process(ctx, path)
		logger.Debug("Finished queue file", zap.String("path", path), zap.Stringer("result", result))
	}
}
