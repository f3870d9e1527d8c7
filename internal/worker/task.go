package worker

import (
	"context"

	"filerelay/internal/retry"
)

// Source hands out queued paths; Pop blocks until one is available or
// ctx is done.
type Source interface {
	Pop(ctx context.Context) (string, error)
}

// Config contains worker configuration
type Config struct {
	LocalRoot  string
	RemoteRoot string
	Policy     retry.Policy

	// Drain lets in-flight transfer attempts finish when the pool is
	// stopped instead of killing them.
	Drain bool

	// Remove deletes a delivered file. Defaults to os.Remove.
	Remove func(path string) error
}

// Result is the final state of one dequeued item
type Result int

const (
	ResultDelivered Result = iota
	ResultAbandoned
	ResultInterrupted
)

func (r Result) String() string {
	switch r {
	case ResultDelivered:
		return "delivered"
	case ResultAbandoned:
		return "abandoned"
	case ResultInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}
