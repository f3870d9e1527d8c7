package worker

import (
	"context"
	"os"
	"time"

	"filerelay/internal/journal"
	"filerelay/internal/metrics"
	"filerelay/internal/retry"
	"filerelay/internal/transport"

	"go.uber.org/zap"
)

type state int

const (
	stateQueued state = iota
	stateTransferring
	stateFailure
	stateSuccess
	stateAbandoned
)

// TaskProcessor delivers a single path
type TaskProcessor struct {
	config    Config
	transport transport.Client
	journal   journal.Store
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// Process moves one item through Queued -> Transferring -> {Success, Failure},
// looping Failure -> Transferring after the policy delay until the transfer
// succeeds, the policy gives up, or ctx is done.
func (p *TaskProcessor) Process(ctx context.Context, path string) Result {
	destination := transport.Destination(path, p.config.LocalRoot, p.config.RemoteRoot)
	logger := p.logger.With(zap.String("path", path), zap.String("destination", destination))

	st := stateQueued
	failures := 0

	for {
		switch st {
		case stateQueued:
			logger.Info("Processing queue file")
			st = stateTransferring

		case stateTransferring:
			if ctx.Err() != nil && !p.config.Drain {
				logger.Info("Stopping before transfer, file left for recovery")
				return ResultInterrupted
			}

			err := p.attempt(ctx, path, destination)
			if err == nil {
				st = stateSuccess
				continue
			}

			failures++
			p.recordFailure(path, err)
			logger.Error("Transfer failed",
				zap.Int("attempt", failures),
				zap.Error(err),
			)
			st = stateFailure

		case stateFailure:
			delay, ok := p.config.Policy.Next(failures)
			if !ok {
				st = stateAbandoned
				continue
			}
			if err := retry.Wait(ctx, delay); err != nil {
				logger.Info("Stopping retries, file left for recovery", zap.Int("attempts", failures))
				return ResultInterrupted
			}
			st = stateTransferring

		case stateSuccess:
			p.complete(logger, path)
			return ResultDelivered

		case stateAbandoned:
			p.metrics.IncAbandoned()
			if err := p.journal.RecordAbandoned(path); err != nil {
				logger.Warn("Failed to journal abandoned file", zap.Error(err))
			}
			logger.Error("Giving up on file after all retries, file left for recovery",
				zap.Int("attempts", failures),
			)
			return ResultAbandoned
		}
	}
}

func (p *TaskProcessor) attempt(ctx context.Context, path, destination string) error {
	if p.config.Drain {
		ctx = context.WithoutCancel(ctx)
	}

	if err := p.journal.RecordAttempt(path, destination); err != nil {
		p.logger.Warn("Failed to journal attempt", zap.String("path", path), zap.Error(err))
	}

	start := time.Now()
	p.metrics.AttemptStarted()
	err := p.transport.Transfer(ctx, path, destination)
	p.metrics.AttemptFinished(time.Since(start), err)
	return err
}

func (p *TaskProcessor) recordFailure(path string, cause error) {
	if err := p.journal.RecordFailure(path, cause); err != nil {
		p.logger.Warn("Failed to journal failure", zap.String("path", path), zap.Error(err))
	}
}

// complete removes the delivered file. A failed removal leaves the file for
// the next recovery scan and is not retried.
func (p *TaskProcessor) complete(logger *zap.Logger, path string) {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	if err := p.journal.RecordDelivered(path); err != nil {
		logger.Warn("Failed to journal delivery", zap.Error(err))
	}
	p.metrics.IncDelivered(size)

	if err := p.config.Remove(path); err != nil {
		p.metrics.IncDeleteFailed()
		logger.Warn("Transfer succeeded without file deletion", zap.Error(err))
		return
	}

	logger.Info("Transfer succeeded", zap.Int64("size", size))
}
