package domain

import "context"

// JobHistoryRepository persists job summaries beyond the in-memory retention window.
type JobHistoryRepository interface {
	Create(ctx context.Context, rec *JobRecord) error
	Finish(ctx context.Context, rec *JobRecord) error
	ListRecent(ctx context.Context, limit int) ([]JobRecord, error)
}
