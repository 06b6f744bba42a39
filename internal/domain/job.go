package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus enumerates download job lifecycle states.
type JobStatus string

const (
	JobStatusInitializing JobStatus = "initializing"
	JobStatusFetching     JobStatus = "fetching"
	JobStatusConverting   JobStatus = "converting"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelling   JobStatus = "cancelling"
	JobStatusCancelled    JobStatus = "cancelled"
)

// Terminal reports whether no further transition can leave s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

var statusTransitions = map[JobStatus][]JobStatus{
	JobStatusInitializing: {JobStatusFetching, JobStatusFailed, JobStatusCancelling},
	JobStatusFetching:     {JobStatusConverting, JobStatusCompleted, JobStatusFailed, JobStatusCancelling},
	JobStatusConverting:   {JobStatusCompleted, JobStatusFailed, JobStatusCancelling},
	JobStatusCancelling:   {JobStatusCancelled, JobStatusFailed},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Mode selects which artifacts a job produces after fetching.
type Mode string

const (
	ModeFetchOnly  Mode = "download-only"
	ModeText       Mode = "full"
	ModeStructured Mode = "json"
	ModeBoth       Mode = "both"
)

// ParseMode accepts the canonical names plus descriptive aliases. An empty
// value selects ModeText.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "full", "text":
		return ModeText, nil
	case "download-only", "fetch-only", "raw":
		return ModeFetchOnly, nil
	case "json", "structured":
		return ModeStructured, nil
	case "both":
		return ModeBoth, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
}

func (m Mode) WantsText() bool       { return m == ModeText || m == ModeBoth }
func (m Mode) WantsStructured() bool { return m == ModeStructured || m == ModeBoth }

// Converts reports whether the mode runs a conversion phase at all.
func (m Mode) Converts() bool { return m.WantsText() || m.WantsStructured() }

// Speed is the user's pacing preference.
type Speed string

const (
	SpeedConservative Speed = "conservative"
	SpeedBalanced     Speed = "balanced"
	SpeedAggressive   Speed = "aggressive"
)

// ParseSpeed defaults to SpeedBalanced for empty input.
func ParseSpeed(raw string) (Speed, error) {
	switch s := Speed(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SpeedBalanced, nil
	case SpeedConservative, SpeedBalanced, SpeedAggressive:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSpeed, raw)
}

// FetchError is an append-only record of a failure observed by a job.
// Book is empty for job-wide errors.
type FetchError struct {
	Book      string    `json:"book,omitempty"`
	Chapter   int       `json:"chapter,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Progress is the externally visible state of a running job.
type Progress struct {
	Status              JobStatus    `json:"status"`
	CurrentBook         string       `json:"currentBook"`
	CurrentChapter      int          `json:"currentChapter"`
	CompletedChapters   int          `json:"completedChapters"`
	TotalChapters       int          `json:"totalChapters"`
	Percentage          int          `json:"percentage"`
	Message             string       `json:"message"`
	Errors              []FetchError `json:"errors"`
	StartTime           time.Time    `json:"startTime"`
	EstimatedCompletion *time.Time   `json:"estimatedCompletion,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (p Progress) Clone() Progress {
	out := p
	out.Errors = append([]FetchError(nil), p.Errors...)
	if p.EstimatedCompletion != nil {
		eta := *p.EstimatedCompletion
		out.EstimatedCompletion = &eta
	}
	return out
}

// Percent returns round(100*completed/total), zero when total is zero.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}

// JobRecord is the persisted summary of a job.
type JobRecord struct {
	ID          string     `json:"id"`
	Translation string     `json:"translationId"`
	Mode        Mode       `json:"mode"`
	Speed       Speed      `json:"speed"`
	Status      JobStatus  `json:"status"`
	Completed   int        `json:"completedChapters"`
	Total       int        `json:"totalChapters"`
	ErrorCount  int        `json:"errorCount"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"createdAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// JobSnapshot is a point-in-time copy of a job for callers outside the
// pipeline.
type JobSnapshot struct {
	ID          string     `json:"id"`
	Translation string     `json:"translationId"`
	Mode        Mode       `json:"mode"`
	Speed       Speed      `json:"speed"`
	CreatedAt   time.Time  `json:"createdAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Progress
}
