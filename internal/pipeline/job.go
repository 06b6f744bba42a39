package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"bibledownloader/internal/domain"
)

// Job is one pipeline run for one translation. Progress is written only by
// the goroutine running the job; readers get copies through Snapshot.
type Job struct {
	ID          string
	Translation domain.Translation
	Source      domain.Source
	Books       []domain.Book
	Mode        domain.Mode
	Speed       domain.Speed
	CreatedAt   time.Time

	mu         sync.RWMutex
	progress   domain.Progress
	finishedAt *time.Time

	cancelRequested atomic.Bool
	done            chan struct{}
	doneOnce        sync.Once
}

// NewJob builds a job in the initializing state.
func NewJob(id string, t domain.Translation, src domain.Source, books []domain.Book, mode domain.Mode, speed domain.Speed, now time.Time) *Job {
	total := 0
	for _, b := range books {
		total += b.Chapters
	}
	return &Job{
		ID:          id,
		Translation: t,
		Source:      src,
		Books:       books,
		Mode:        mode,
		Speed:       speed,
		CreatedAt:   now,
		progress: domain.Progress{
			Status:        domain.JobStatusInitializing,
			TotalChapters: total,
			Message:       "Initializing download...",
			Errors:        []domain.FetchError{},
			StartTime:     now,
		},
		done: make(chan struct{}),
	}
}

// Snapshot returns a copy of the job state.
func (j *Job) Snapshot() domain.JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	snap := domain.JobSnapshot{
		ID:          j.ID,
		Translation: j.Translation.Code,
		Mode:        j.Mode,
		Speed:       j.Speed,
		CreatedAt:   j.CreatedAt,
		Progress:    j.progress.Clone(),
	}
	if j.finishedAt != nil {
		at := *j.finishedAt
		snap.FinishedAt = &at
	}
	return snap
}

// Status returns the current status.
func (j *Job) Status() domain.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress.Status
}

// FinishedAt returns when the job reached a terminal status, or nil.
func (j *Job) FinishedAt() *time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.finishedAt == nil {
		return nil
	}
	at := *j.finishedAt
	return &at
}

// Done is closed once the job is terminal.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// RequestCancel raises the cancellation flag. Fetches already dispatched in
// the current batch still complete.
func (j *Job) RequestCancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.progress.Status.Terminal():
		return fmt.Errorf("%w: job %s is %s", domain.ErrAlreadyTerminal, j.ID, j.progress.Status)
	case j.progress.Status == domain.JobStatusCancelling:
		return nil
	}
	j.cancelRequested.Store(true)
	j.progress.Status = domain.JobStatusCancelling
	j.progress.Message = "Cancelling download..."
	return nil
}

// CancelRequested reports whether RequestCancel was called.
func (j *Job) CancelRequested() bool {
	return j.cancelRequested.Load()
}

// transition moves the job to status, rejecting edges outside the lifecycle.
func (j *Job) transition(status domain.JobStatus, message string, now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	from := j.progress.Status
	if !domain.CanTransition(from, status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, status)
	}
	j.progress.Status = status
	j.progress.Message = message
	if status.Terminal() {
		at := now
		j.finishedAt = &at
		j.doneOnce.Do(func() { close(j.done) })
	}
	return nil
}

// update applies fn to the progress under the write lock.
func (j *Job) update(fn func(p *domain.Progress)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.progress)
}

func (j *Job) appendError(e domain.FetchError) {
	j.update(func(p *domain.Progress) {
		p.Errors = append(p.Errors, e)
	})
}
