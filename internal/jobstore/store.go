// Package jobstore holds the mutable state of every in-flight and
// recently-completed ingestion job. It is the only shared resource in the
// ingestion subsystem: a single orchestrator goroutine writes each job while
// pollers read concurrently, and every mutation is applied atomically under
// the store lock so a poll never observes a torn update.
package jobstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arda-labs/reorder-cli/internal/model"
)

// ErrNotFound is returned for unknown or evicted job ids.
var ErrNotFound = eris.New("job not found")

// SupersededReason is the terminal error recorded on a job that was failed
// because its owner started a newer job. UIs key off this string to
// distinguish supersession from real failures.
const SupersededReason = "superseded by a newer job"

// StepOutcome classifies the result of processing one candidate email.
type StepOutcome int

const (
	// StepOrder means extraction produced a structured order.
	StepOrder StepOutcome = iota
	// StepSkipped means the email was processed but is not an order.
	StepSkipped
	// StepFailed means extraction failed for this single email.
	StepFailed
)

// Options configures a Store.
type Options struct {
	// Retention is how long a non-running job survives after its last
	// update before eviction. Default: 1h.
	Retention time.Duration

	// LogCapacity bounds the per-job log ring. Default: 50.
	LogCapacity int

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

type jobRecord struct {
	job  model.Job
	ring *logRing
}

// Store is an in-memory job registry with a secondary "latest job per owner"
// index. Constructed once per process and injected; there is no ambient
// singleton so tests can build isolated stores.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*jobRecord
	latest    map[string]string // ownerKey -> job id
	retention time.Duration
	logCap    int
	now       func() time.Time
}

// New creates an empty Store.
func New(opts Options) *Store {
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.LogCapacity <= 0 {
		opts.LogCapacity = 50
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		jobs:      make(map[string]*jobRecord),
		latest:    make(map[string]string),
		retention: opts.Retention,
		logCap:    opts.LogCapacity,
		now:       opts.Clock,
	}
}

// Create registers a new pending job for the owner and returns a snapshot.
// If the owner already has a non-terminal job, that job is failed with
// SupersededReason first; its accumulated orders are retained. Supersession
// is keyed by owner only, not (owner, category).
func (s *Store) Create(ownerKey string, category model.JobCategory) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prevID, ok := s.latest[ownerKey]; ok {
		if prev, ok := s.jobs[prevID]; ok && !prev.job.Status.Terminal() {
			s.failLocked(prev, SupersededReason)
			zap.L().Info("job superseded",
				zap.String("job_id", prevID),
				zap.String("owner", ownerKey),
			)
		}
	}

	now := s.now()
	rec := &jobRecord{
		job: model.Job{
			ID:        uuid.New().String(),
			OwnerKey:  ownerKey,
			Category:  category,
			Status:    model.JobStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		ring: newLogRing(s.logCap),
	}
	s.jobs[rec.job.ID] = rec
	s.latest[ownerKey] = rec.job.ID
	return snapshotLocked(rec)
}

// Get returns a read-only snapshot of the job, or ErrNotFound if the id is
// unknown or the job was evicted.
func (s *Store) Get(id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return snapshotLocked(rec), nil
}

// LatestFor returns the owner's most recently created job.
func (s *Store) LatestFor(ownerKey string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.latest[ownerKey]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	rec, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return snapshotLocked(rec), nil
}

// MarkRunning flips a pending job to running. No-op on terminal jobs.
func (s *Store) MarkRunning(id string, total int, task string) error {
	return s.mutate(id, func(rec *jobRecord) {
		rec.job.Status = model.JobStatusRunning
		rec.job.Progress.Total = total
		rec.job.Progress.CurrentTask = task
	})
}

// SetTask updates the human-readable current task line.
func (s *Store) SetTask(id, task string) error {
	return s.mutate(id, func(rec *jobRecord) {
		rec.job.Progress.CurrentTask = task
	})
}

// RecordStep applies the outcome of one candidate email atomically:
// processed always advances; an order outcome appends the order and counts a
// success; a failure counts toward progress.failed. The log line lands in
// the bounded ring in the same critical section.
func (s *Store) RecordStep(id string, outcome StepOutcome, order *model.ExtractedOrder, logLine string) error {
	return s.mutate(id, func(rec *jobRecord) {
		rec.job.Progress.Processed++
		switch outcome {
		case StepOrder:
			if order != nil {
				rec.job.Orders = append(rec.job.Orders, *order)
				rec.job.Progress.Success++
			}
		case StepFailed:
			rec.job.Progress.Failed++
		}
		if logLine != "" {
			rec.ring.push(logLine)
		}
	})
}

// AppendLog records a log line without touching progress counters.
func (s *Store) AppendLog(id, line string) error {
	return s.mutate(id, func(rec *jobRecord) {
		rec.ring.push(line)
	})
}

// Complete marks a running job completed.
func (s *Store) Complete(id, logLine string) error {
	return s.mutate(id, func(rec *jobRecord) {
		rec.job.Status = model.JobStatusCompleted
		rec.job.Progress.CurrentTask = ""
		if logLine != "" {
			rec.ring.push(logLine)
		}
	})
}

// Fail marks a job failed with a terminal reason. Accumulated orders are
// kept so a late failure does not discard earlier extractions.
func (s *Store) Fail(id, reason string) error {
	return s.mutate(id, func(rec *jobRecord) {
		s.failLocked(rec, reason)
	})
}

// EvictExpired removes every non-running job whose last update is older than
// the retention window, dropping owner pointers that referenced an evicted
// job. Returns the number of jobs removed.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	var evicted int
	for id, rec := range s.jobs {
		if rec.job.Status == model.JobStatusRunning {
			continue
		}
		if rec.job.UpdatedAt.After(cutoff) {
			continue
		}
		delete(s.jobs, id)
		if s.latest[rec.job.OwnerKey] == id {
			delete(s.latest, rec.job.OwnerKey)
		}
		evicted++
	}
	return evicted
}

// Janitor runs EvictExpired on the given interval until ctx is cancelled.
// Eviction is interval-driven, never triggered by reads.
func (s *Store) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictExpired(); n > 0 {
				zap.L().Debug("evicted expired jobs", zap.Int("count", n))
			}
		}
	}
}

// mutate applies fn under the write lock and bumps updatedAt. Mutations of
// terminal jobs are dropped with an informational log: once terminal, a job
// is read-only and in-flight writes from a superseded run must become no-ops.
func (s *Store) mutate(id string, fn func(rec *jobRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if rec.job.Status.Terminal() {
		zap.L().Debug("write to terminal job ignored", zap.String("job_id", id))
		return nil
	}
	fn(rec)
	rec.job.UpdatedAt = s.now()
	return nil
}

// failLocked is the shared terminal-fail path. Callers hold the write lock.
func (s *Store) failLocked(rec *jobRecord, reason string) {
	if rec.job.Status.Terminal() {
		return
	}
	rec.job.Status = model.JobStatusFailed
	rec.job.Error = reason
	rec.job.Progress.CurrentTask = ""
	rec.ring.push("job failed: " + reason)
	rec.job.UpdatedAt = s.now()
}

// snapshotLocked deep-copies the record for a reader. Orders are copied at
// the slice level; individual orders are immutable once recorded.
func snapshotLocked(rec *jobRecord) model.Job {
	out := rec.job
	out.Orders = make([]model.ExtractedOrder, len(rec.job.Orders))
	copy(out.Orders, rec.job.Orders)
	out.Logs = rec.ring.snapshot()
	return out
}
