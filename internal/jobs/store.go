// Package jobs owns the registry of download jobs and the service that
// creates, inspects and cancels them.
package jobs

import (
	"slices"
	"strings"
	"sync"
	"time"

	"bibledownloader/internal/pipeline"
)

// Store maps job ids to jobs. Terminal jobs are removed by Sweep once they
// are older than the retention window.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*pipeline.Job
}

// NewStore returns an empty registry.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*pipeline.Job)}
}

// Add registers job.
func (s *Store) Add(job *pipeline.Job) {
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
}

// Get looks a job up by id.
func (s *Store) Get(id string) (*pipeline.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// List returns every job, newest first.
func (s *Store) List() []*pipeline.Job {
	s.mu.RLock()
	out := make([]*pipeline.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *pipeline.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of registered jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep drops terminal jobs that finished before now-retention.
func (s *Store) Sweep(now time.Time, retention time.Duration) (removed, remaining int) {
	cutoff := now.Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		finished := job.FinishedAt()
		if finished == nil || !job.Status().Terminal() {
			continue
		}
		if finished.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, len(s.jobs)
}
