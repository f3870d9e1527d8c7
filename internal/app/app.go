package app

import (
	"context"
	"fmt"
	"sync"

	"filerelay/internal/config"
	"filerelay/internal/journal"
	"filerelay/internal/metrics"
	"filerelay/internal/progress"
	"filerelay/internal/queue"
	"filerelay/internal/retry"
	"filerelay/internal/scanner"
	"filerelay/internal/transport"
	"filerelay/internal/worker"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// Relay wires the work queue, recovery scan, worker pool and ingestion
// endpoint together.
type Relay struct {
	cfg       *config.Config
	logger    *zap.Logger
	queue     *queue.Queue
	scanner   *scanner.Scanner
	transport transport.Client
	journal   journal.Store
	metrics   *metrics.Collector
	workers   *worker.Pool
	server    *server
	lock      *flock.Flock
}

// New creates a relay from validated configuration
func New(cfg *config.Config, logger *zap.Logger) (*Relay, error) {
	client, err := NewTransport(cfg, logger)
	if err != nil {
		return nil, err
	}

	var store journal.Store = journal.Nop{}
	if cfg.JournalPath != "" {
		sqliteStore, err := journal.NewSQLiteStore(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		store = sqliteStore
	}

	return newRelay(cfg, logger, client, store), nil
}

func newRelay(cfg *config.Config, logger *zap.Logger, client transport.Client, store journal.Store) *Relay {
	q := queue.New()
	metricsCollector := metrics.New()
	metricsCollector.RegisterQueueDepth(q.Len)

	workerPool := worker.NewPool(cfg.Relay.Workers, worker.Config{
		LocalRoot:  cfg.LocalRoot,
		RemoteRoot: cfg.Remote.Destination,
		Policy:     retry.New(cfg.Relay.RetryDelay, cfg.Relay.RetryBackoffMax, cfg.Relay.RetryMaxAttempts),
		Drain:      cfg.Relay.Drain,
	}, q, client, store, metricsCollector, logger)

	return &Relay{
		cfg:       cfg,
		logger:    logger,
		queue:     q,
		scanner:   scanner.New(cfg.LocalRoot, logger),
		transport: client,
		journal:   store,
		metrics:   metricsCollector,
		workers:   workerPool,
		server:    newServer(cfg.ListenAddr, cfg.LocalRoot, q, metricsCollector, logger),
		lock:      flock.New(cfg.LockFile),
	}
}

// NewTransport builds the configured transport client
func NewTransport(cfg *config.Config, logger *zap.Logger) (transport.Client, error) {
	switch cfg.Remote.Transport {
	case config.TransportS3:
		client, err := transport.NewS3(transport.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Secure:    cfg.S3.Secure,
			PartSize:  cfg.S3.PartSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
		return client, nil
	case config.TransportRsync:
		return transport.NewRsync(transport.RsyncConfig{
			Binary: cfg.Remote.RsyncBinary,
			Host:   cfg.Remote.Host,
			Port:   cfg.Remote.Port,
			User:   cfg.Remote.User,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Remote.Transport)
	}
}

// Run recovers existing files, starts the workers and serves the ingestion
// endpoint until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("Starting relay",
		zap.String("local_root", r.cfg.LocalRoot),
		zap.String("transport", r.cfg.Remote.Transport),
		zap.String("remote_host", r.cfg.Remote.Host),
		zap.String("remote_destination", r.cfg.Remote.Destination),
		zap.Int("workers", r.cfg.Relay.Workers),
		zap.Duration("retry_delay", r.cfg.Relay.RetryDelay),
		zap.Bool("drain", r.cfg.Relay.Drain),
	)

	locked, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another relay is already draining %s (lock %s)", r.cfg.LocalRoot, r.cfg.LockFile)
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn("Failed to release lock", zap.Error(err))
		}
	}()

	// Everything already on disk is queued before new notifications are accepted.
	if _, err := r.scanner.Recover(ctx, r.queue); err != nil {
		return fmt.Errorf("recovery scan failed: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	r.workers.Start(runCtx, &wg)

	if r.cfg.Relay.StatusInterval > 0 {
		reporter := progress.NewReporter(r.metrics.GetProgressTracker(), r.cfg.Relay.StatusInterval, r.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			reporter.Run(runCtx)
		}()
	}

	err = r.server.Serve(runCtx)

	cancel()
	wg.Wait()

	if err != nil {
		return err
	}

	r.logger.Info("Relay stopped", zap.Int("queued", r.queue.Len()))
	return nil
}

// Planned is a transfer the recovery scan would start
type Planned struct {
	Path        string
	Destination string
	Size        int64
}

// Plan lists the transfers a restart would queue, without queuing them
func (r *Relay) Plan(ctx context.Context) ([]Planned, error) {
	entries, err := r.scanner.List(ctx)
	if err != nil {
		return nil, err
	}

	planned := make([]Planned, 0, len(entries))
	for _, e := range entries {
		planned = append(planned, Planned{
			Path:        e.Path,
			Destination: transport.Destination(e.Path, r.cfg.LocalRoot, r.cfg.Remote.Destination),
			Size:        e.Size,
		})
	}
	return planned, nil
}

// Close cleans up resources
func (r *Relay) Close() error {
	if r.journal != nil {
		return r.journal.Close()
	}
	return nil
}
