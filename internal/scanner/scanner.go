package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Sink receives recovered paths
type Sink interface {
	Push(path string)
}

// Entry describes a file found under the local root
type Entry struct {
	Path string
	Size int64
}

// Scanner walks the local root to recover files left over from a previous run
type Scanner struct {
	root   string
	logger *zap.Logger
}

// New creates a scanner for root
func New(root string, logger *zap.Logger) *Scanner {
	return &Scanner{root: root, logger: logger}
}

// Recover pushes every regular file under the root into sink and returns
// the number of paths pushed. Any walk error aborts the scan.
func (s *Scanner) Recover(ctx context.Context, sink Sink) (int, error) {
	count := 0
	err := s.walk(ctx, func(e Entry) {
		s.logger.Info("Adding existing file to queue", zap.String("path", e.Path))
		sink.Push(e.Path)
		count++
	})
	if err != nil {
		return count, err
	}

	s.logger.Info("Recovery scan completed",
		zap.String("root", s.root),
		zap.Int("files", count),
	)
	return count, nil
}

// List returns the files Recover would enqueue, without enqueuing them
func (s *Scanner) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.walk(ctx, func(e Entry) {
		entries = append(entries, e)
	})
	return entries, err
}

func (s *Scanner) walk(ctx context.Context, fn func(Entry)) error {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", s.root, err)
	}

	// The trailing separator makes WalkDir follow a symlinked root while
	// keeping the configured spelling as the prefix of every path.
	start := root
	if !strings.HasSuffix(start, string(filepath.Separator)) {
		start += string(filepath.Separator)
	}

	err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		fn(Entry{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return nil
}
