package journal

import (
	"time"
)

// Status represents where a path is in its delivery
type Status string

const (
	StatusTransferring Status = "transferring"
	StatusFailed       Status = "failed"
	StatusDelivered    Status = "delivered"
	StatusAbandoned    Status = "abandoned"
)

// Record is the journal entry for one local path
type Record struct {
	Path        string    `json:"path"`
	Destination string    `json:"destination"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store records delivery attempts. It is an audit trail only; the relay
// never consults it to decide whether to transfer a file.
type Store interface {
	RecordAttempt(path, destination string) error
	RecordFailure(path string, cause error) error
	RecordDelivered(path string) error
	RecordAbandoned(path string) error
	Get(path string) (*Record, error)
	List(statuses ...Status) ([]*Record, error)
	Close() error
}

// Nop is a Store that discards everything
type Nop struct{}

func (Nop) RecordAttempt(string, string) error { return nil }
func (Nop) RecordFailure(string, error) error { return nil }
func (Nop) RecordDelivered(string) error { return nil }
func (Nop) RecordAbandoned(string) error { return nil }
func (Nop) Get(string) (*Record, error) { return nil, nil }
func (Nop) List(...Status) ([]*Record, error) { return nil, nil }
func (Nop) Close() error { return nil }
