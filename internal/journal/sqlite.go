package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db      *sql.DB
	closed  atomic.Bool
	writeMu sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the journal at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(60000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(10 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS deliveries (
		path TEXT PRIMARY KEY,
		destination TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		last_error TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);
	`

	_, err := s.db.Exec(query)
	return err
}

// RecordAttempt marks path as transferring and bumps its attempt count
func (s *SQLiteStore) RecordAttempt(path, destination string) error {
	return s.write(`
	INSERT INTO deliveries (path, destination, status, attempts, last_error, updated_at)
	VALUES (?, ?, ?, 1, NULL, ?)
	ON CONFLICT(path) DO UPDATE SET
		destination = excluded.destination,
		status = excluded.status,
		attempts = deliveries.attempts + 1,
		updated_at = excluded.updated_at
	`, path, destination, StatusTransferring, time.Now().UTC())
}

// RecordFailure stores the outcome of a failed attempt
func (s *SQLiteStore) RecordFailure(path string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.write(`
	UPDATE deliveries SET status = ?, last_error = ?, updated_at = ? WHERE path = ?
	`, StatusFailed, msg, time.Now().UTC(), path)
}

// RecordDelivered marks path as delivered
func (s *SQLiteStore) RecordDelivered(path string) error {
	return s.write(`
	UPDATE deliveries SET status = ?, last_error = NULL, updated_at = ? WHERE path = ?
	`, StatusDelivered, time.Now().UTC(), path)
}

// RecordAbandoned marks path as given up on by a bounded retry policy
func (s *SQLiteStore) RecordAbandoned(path string) error {
	return s.write(`
	UPDATE deliveries SET status = ?, updated_at = ? WHERE path = ?
	`, StatusAbandoned, time.Now().UTC(), path)
}

func (s *SQLiteStore) write(query string, args ...any) error {
	if s.closed.Load() {
		return fmt.Errorf("journal store is closed")
	}

	// Serialize writes to avoid SQLITE_BUSY from concurrent workers
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(query, args...)
		return err
	})
}

// Get returns the record for path, or nil when there is none
func (s *SQLiteStore) Get(path string) (*Record, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("journal store is closed")
	}

	row := s.db.QueryRow(`
	SELECT path, destination, status, attempts, last_error, updated_at
	FROM deliveries WHERE path = ?
	`, path)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return record, err
}

// List returns records, optionally filtered by status, oldest first
func (s *SQLiteStore) List(statuses ...Status) ([]*Record, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("journal store is closed")
	}

	query := `SELECT path, destination, status, attempts, last_error, updated_at FROM deliveries`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY updated_at ASC, path ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var lastError sql.NullString

	err := row.Scan(
		&record.Path,
		&record.Destination,
		&record.Status,
		&record.Attempts,
		&lastError,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastError.Valid {
		record.LastError = lastError.String
	}
	return &record, nil
}

// retryOnBusy retries the operation if SQLite is busy
func (s *SQLiteStore) retryOnBusy(operation func() error) error {
	maxRetries := 10
	baseDelay := 50 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil || !isSQLiteBusyError(err) {
			return err
		}

		delay := baseDelay * time.Duration(1<<uint(attempt))
		jitter := time.Duration(attempt*10) * time.Millisecond
		time.Sleep(delay + jitter)
	}

	return err
}

// isSQLiteBusyError checks if the error is a SQLite busy error
func isSQLiteBusyError(err error) bool {
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}
