package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bibledownloader/internal/domain"
	"bibledownloader/internal/sqlinline"
)

type stubExecutor struct {
	execQueries []string
	execArgs    [][]any
	execTag     pgconn.CommandTag
	execErr     error
	rows        [][]any
}

func (s *stubExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execQueries = append(s.execQueries, query)
	s.execArgs = append(s.execArgs, args)
	return s.execTag, s.execErr
}

func (s *stubExecutor) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (s *stubExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	if query != sqlinline.QListRecentDownloadJobs {
		return nil, fmt.Errorf("unexpected query")
	}
	if len(args) != 1 || args[0] != 2 {
		return nil, fmt.Errorf("unexpected args %v", args)
	}
	return &stubRows{data: s.rows, idx: -1}, nil
}

type stubRows struct {
	data [][]any
	idx  int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, errors.New("not supported") }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: got %d dest, want %d", len(dest), len(row))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		case **time.Time:
			if v == nil {
				*d = nil
			} else {
				t := v.(time.Time)
				*d = &t
			}
		default:
			return fmt.Errorf("scan: unsupported dest %T", dest[i])
		}
	}
	return nil
}

func TestJobHistoryCreateAndFinish(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewJobHistoryRepository(exec)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	finished := created.Add(time.Hour)
	rec := &domain.JobRecord{
		ID:          "download_1",
		Translation: "KJV",
		Mode:        domain.ModeText,
		Speed:       domain.SpeedBalanced,
		Status:      domain.JobStatusInitializing,
		Total:       1189,
		CreatedAt:   created,
	}

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	rec.Status = domain.JobStatusCompleted
	rec.Completed = 1189
	rec.FinishedAt = &finished
	if err := repo.Finish(context.Background(), rec); err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}

	if len(exec.execQueries) != 2 {
		t.Fatalf("exec calls = %d, want 2", len(exec.execQueries))
	}
	for i, q := range exec.execQueries {
		if !strings.HasPrefix(q, "--sql ") {
			t.Fatalf("query %d lacks marker: %q", i, q)
		}
	}
	if got := exec.execArgs[0][2]; got != "full" {
		t.Fatalf("insert mode arg = %v, want full", got)
	}
	if got := exec.execArgs[1][1]; got != "completed" {
		t.Fatalf("finish status arg = %v, want completed", got)
	}
}

func TestJobHistoryFinishUnknown(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")}
	err := NewJobHistoryRepository(exec).Finish(context.Background(), &domain.JobRecord{ID: "missing"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Finish error = %v, want ErrNotFound", err)
	}
}

func TestJobHistoryListRecent(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	exec := &stubExecutor{rows: [][]any{
		{"download_2", "NASB", "both", "aggressive", "fetching", 10, 1189, 0, "Downloading Genesis 10...", created.Add(time.Minute), nil},
		{"download_1", "KJV", "full", "balanced", "completed", 1189, 1189, 2, "Download completed successfully", created, created.Add(time.Hour)},
	}}
	recs, err := NewJobHistoryRepository(exec).ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRecent returned error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].FinishedAt != nil {
		t.Fatalf("running job has FinishedAt %v", recs[0].FinishedAt)
	}
	if recs[1].Status != domain.JobStatusCompleted || recs[1].Mode != domain.ModeText || recs[1].ErrorCount != 2 {
		t.Fatalf("unexpected record: %+v", recs[1])
	}
	if recs[1].FinishedAt == nil || !recs[1].FinishedAt.Equal(created.Add(time.Hour)) {
		t.Fatalf("FinishedAt = %v", recs[1].FinishedAt)
	}
}
