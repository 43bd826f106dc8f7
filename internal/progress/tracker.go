// Package progress tracks per-job analysis state for polling clients.
package progress

import (
	"log/slog"
	"sync"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
)

type job struct {
	progress  models.AnalysisProgress
	updatedAt time.Time
}

// Tracker serializes all progress updates behind one mutex and keys them by
// job id. Reads are idempotent snapshots; writes are monotonic, current
// never decreases and a terminal status never regresses.
type Tracker struct {
	mu     sync.Mutex
	jobs   map[string]*job
	logger *slog.Logger
}

func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		jobs:   make(map[string]*job),
		logger: logger,
	}
}

// Create registers a job in the pending state. The total is not yet known;
// Begin sets it once the attachment set has been resolved.
func (t *Tracker) Create(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.jobs[jobID]; exists {
		return
	}
	t.jobs[jobID] = &job{
		progress:  models.AnalysisProgress{Status: models.StatusPending},
		updatedAt: time.Now(),
	}
}

// Begin moves a job to processing with a known unit total.
func (t *Tracker) Begin(jobID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[jobID]
	if !ok || j.progress.Status.Terminal() {
		return
	}
	j.progress.Status = models.StatusProcessing
	j.progress.Total = total
	j.updatedAt = time.Now()
}

// Advance increments current by one and sets the step message. Calls past
// the total or on a terminal job are ignored.
func (t *Tracker) Advance(jobID, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[jobID]
	if !ok || j.progress.Status.Terminal() {
		return
	}
	if j.progress.Current < j.progress.Total {
		j.progress.Current++
	}
	j.progress.Message = message
	j.updatedAt = time.Now()
}

// Complete moves a job to the completed terminal state.
func (t *Tracker) Complete(jobID, message string) {
	t.finish(jobID, models.StatusCompleted, message)
}

// Fail moves a job to the error terminal state.
func (t *Tracker) Fail(jobID, message string) {
	t.finish(jobID, models.StatusError, message)
}

func (t *Tracker) finish(jobID string, status models.JobStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[jobID]
	if !ok || j.progress.Status.Terminal() {
		return
	}
	j.progress.Status = status
	j.progress.Message = message
	j.updatedAt = time.Now()
}

// Snapshot returns the current progress of a job. Unknown jobs read as
// pending with zero counts, so a client polling before the job record lands
// sees a consistent shape rather than an error.
func (t *Tracker) Snapshot(jobID string) models.AnalysisProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[jobID]
	if !ok {
		return models.AnalysisProgress{Status: models.StatusPending}
	}
	return j.progress
}

// CleanupExpired drops terminal jobs untouched for longer than retention
// and returns how many were removed.
func (t *Tracker) CleanupExpired(retention time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-retention)
	for id, j := range t.jobs {
		if j.progress.Status.Terminal() && j.updatedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		t.logger.Debug("purged expired jobs", "count", removed)
	}
	return removed
}
