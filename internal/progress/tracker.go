package progress

import (
	"sync"
	"time"
)

// Status is a snapshot of relay activity since startup
type Status struct {
	DeliveredFiles int64
	DeliveredBytes int64
	FailedAttempts int64
	AbandonedFiles int64
	DeleteFailures int64
	Backlog        int64
	StartTime      time.Time
	LastUpdateTime time.Time
	CurrentSpeed   float64 // bytes/second over the last few seconds
	AverageSpeed   float64 // bytes/second since start
}

// Tracker tracks delivery progress
type Tracker struct {
	mu           sync.RWMutex
	status       Status
	backlog      func() int
	speedSamples []speedSample
	maxSamples   int
}

type speedSample struct {
	timestamp time.Time
	bytes     int64
}

// NewTracker creates a new progress tracker
func NewTracker() *Tracker {
	now := time.Now()
	return &Tracker{
		status: Status{
			StartTime:      now,
			LastUpdateTime: now,
		},
		speedSamples: make([]speedSample, 0, 60),
		maxSamples:   60,
	}
}

// SetBacklogFunc sets the source of the queue backlog
func (t *Tracker) SetBacklogFunc(fn func() int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backlog = fn
}

// AddDelivered records a delivered file
func (t *Tracker) AddDelivered(bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.DeliveredFiles++
	t.status.DeliveredBytes += bytes
	t.updateSpeed(bytes)
}

// AddFailedAttempt records a failed transfer attempt
func (t *Tracker) AddFailedAttempt() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.FailedAttempts++
	t.status.LastUpdateTime = time.Now()
}

// AddAbandoned records an item dropped by a bounded retry policy
func (t *Tracker) AddAbandoned() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.AbandonedFiles++
	t.status.LastUpdateTime = time.Now()
}

// AddDeleteFailure records a failed local deletion
func (t *Tracker) AddDeleteFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.DeleteFailures++
	t.status.LastUpdateTime = time.Now()
}

// updateSpeed must be called with the lock held
func (t *Tracker) updateSpeed(bytes int64) {
	now := time.Now()

	t.speedSamples = append(t.speedSamples, speedSample{timestamp: now, bytes: bytes})
	if len(t.speedSamples) > t.maxSamples {
		t.speedSamples = t.speedSamples[1:]
	}

	t.calculateCurrentSpeed(now)

	if elapsed := now.Sub(t.status.StartTime); elapsed > 0 {
		t.status.AverageSpeed = float64(t.status.DeliveredBytes) / elapsed.Seconds()
	}

	t.status.LastUpdateTime = now
}

// calculateCurrentSpeed uses the samples from the last five seconds
func (t *Tracker) calculateCurrentSpeed(now time.Time) {
	if len(t.speedSamples) < 2 {
		t.status.CurrentSpeed = 0
		return
	}

	cutoff := now.Add(-5 * time.Second)
	var recentBytes int64
	var firstSample *speedSample

	for i := len(t.speedSamples) - 1; i >= 0; i-- {
		sample := &t.speedSamples[i]
		if sample.timestamp.Before(cutoff) {
			break
		}
		recentBytes += sample.bytes
		firstSample = sample
	}

	if firstSample != nil {
		if d := now.Sub(firstSample.timestamp); d > 0 {
			t.status.CurrentSpeed = float64(recentBytes) / d.Seconds()
		}
	}
}

// GetStatus returns the current status (thread-safe)
func (t *Tracker) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := t.status
	if t.backlog != nil {
		status.Backlog = int64(t.backlog())
	}
	return status
}
