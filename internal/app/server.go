package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"filerelay/internal/ingest"
	"filerelay/internal/metrics"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type server struct {
	addr    string
	handler http.Handler
	logger  *zap.Logger
	ready   chan net.Addr
}

func newServer(addr, root string, notifier ingest.Notifier, m *metrics.Collector, logger *zap.Logger) *server {
	mux := http.NewServeMux()
	mux.Handle("/notify", ingest.NewHandler(root, notifier, logger))
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	return &server{
		addr:    addr,
		handler: mux,
		logger:  logger,
		ready:   make(chan net.Addr, 1),
	}
}

// Serve listens until ctx is done
func (s *server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.logger.Info("Accepting notifications", zap.String("addr", listener.Addr().String()))
	select {
	case s.ready <- listener.Addr():
	default:
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
