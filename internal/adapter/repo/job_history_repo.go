package repo

import (
	"context"
	"fmt"
	"time"

	"bibledownloader/internal/domain"
	"bibledownloader/internal/infra"
	"bibledownloader/internal/sqlinline"
)

// JobHistoryRepositoryPG implements domain.JobHistoryRepository.
type JobHistoryRepositoryPG struct {
	db infra.SQLExecutor
}

// NewJobHistoryRepository creates a job history repository backed by PostgreSQL.
func NewJobHistoryRepository(db infra.SQLExecutor) *JobHistoryRepositoryPG {
	return &JobHistoryRepositoryPG{db: db}
}

// EnsureSchema creates the download_jobs table when missing.
func (r *JobHistoryRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QEnsureDownloadJobs); err != nil {
		return fmt.Errorf("ensure download_jobs: %w", err)
	}
	return nil
}

// Create records a newly registered job.
func (r *JobHistoryRepositoryPG) Create(ctx context.Context, rec *domain.JobRecord) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertDownloadJob,
		rec.ID,
		rec.Translation,
		string(rec.Mode),
		string(rec.Speed),
		string(rec.Status),
		rec.Completed,
		rec.Total,
		rec.ErrorCount,
		rec.Message,
		rec.CreatedAt,
	)
	return err
}

// Finish stores the terminal state of a job. It returns domain.ErrNotFound
// when the job was never recorded.
func (r *JobHistoryRepositoryPG) Finish(ctx context.Context, rec *domain.JobRecord) error {
	tag, err := r.db.Exec(ctx, sqlinline.QFinishDownloadJob,
		rec.ID,
		string(rec.Status),
		rec.Completed,
		rec.Total,
		rec.ErrorCount,
		rec.Message,
		rec.FinishedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecent returns the newest jobs first.
func (r *JobHistoryRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.JobRecord, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListRecentDownloadJobs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JobRecord
	for rows.Next() {
		var (
			rec                 domain.JobRecord
			mode, speed, status string
			finished            *time.Time
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Translation,
			&mode,
			&speed,
			&status,
			&rec.Completed,
			&rec.Total,
			&rec.ErrorCount,
			&rec.Message,
			&rec.CreatedAt,
			&finished,
		); err != nil {
			return nil, err
		}
		rec.Mode = domain.Mode(mode)
		rec.Speed = domain.Speed(speed)
		rec.Status = domain.JobStatus(status)
		rec.FinishedAt = finished
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ domain.JobHistoryRepository = (*JobHistoryRepositoryPG)(nil)
