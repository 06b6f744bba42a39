package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bibledownloader/internal/domain"
	"bibledownloader/internal/fetch"
	"bibledownloader/internal/throttle"
)

const (
	// RecoveryFailureRatio is the batch failure ratio above which the
	// scheduler takes the recovery pause.
	RecoveryFailureRatio = 0.3
	DefaultRecoveryPause = 10 * time.Second
	// ETAThreshold is the completed count after which an estimate is shown.
	ETAThreshold = 5
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BatchReport summarizes one folded batch.
type BatchReport struct {
	Fetched int
	Skipped int
	Failed  int
	Pause   time.Duration
}

// FailureRatio is Failed over the batch size.
func (b BatchReport) FailureRatio() float64 {
	n := b.Fetched + b.Skipped + b.Failed
	if n == 0 {
		return 0
	}
	return float64(b.Failed) / float64(n)
}

// Scheduler runs the fetch unit over fixed-size concurrent batches. Progress
// is folded only after a whole batch resolves.
type Scheduler struct {
	unit          *FetchUnit
	throttle      *throttle.Throttle
	concurrency   int
	recoveryPause time.Duration
	sleep         Sleeper
	now           func() time.Time
	logger        zerolog.Logger
	onBatch       func(BatchReport)
}

// Run processes pending in catalogue order. completed is the number of
// chapters already valid before the first batch. The returned error is
// either fatal (configuration) or the context error; cancellation through
// the job flag returns nil.
func (s *Scheduler) Run(ctx context.Context, job *Job, pending []domain.Resource, completed int) error {
	size := s.concurrency
	if size < 1 {
		size = 1
	}
	start := completed
	for offset := 0; offset < len(pending); offset += size {
		if job.CancelRequested() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(offset+size, len(pending))
		batch := pending[offset:end]
		results, fatal := s.dispatch(ctx, batch)

		var report BatchReport
		completed, report = s.fold(job, results, completed, start)

		if fatal != nil {
			return fatal
		}
		last := end == len(pending)
		if !last {
			report.Pause = s.pause(report)
		}
		if s.onBatch != nil {
			s.onBatch(report)
		}
		if last {
			break
		}
		if report.FailureRatio() > RecoveryFailureRatio {
			s.logger.Warn().
				Int("failed", report.Failed).
				Int("batch", len(batch)).
				Dur("pause", report.Pause).
				Msg("high batch failure ratio, pausing")
			job.update(func(p *domain.Progress) {
				p.Message = fmt.Sprintf("High error rate, pausing %s before continuing...", report.Pause)
			})
		}
		if err := s.sleep(ctx, report.Pause); err != nil {
			return err
		}
	}
	return nil
}

// dispatch runs one batch concurrently. Only a configuration error escapes
// the group, and only after every sibling has returned.
func (s *Scheduler) dispatch(ctx context.Context, batch []domain.Resource) ([]fetchResult, error) {
	results := make([]fetchResult, len(batch))
	var g errgroup.Group
	g.SetLimit(len(batch))
	for i, r := range batch {
		i, r := i, r
		g.Go(func() error {
			results[i] = s.unit.Run(ctx, r)
			if fetch.IsFatal(results[i].err) {
				return results[i].err
			}
			return nil
		})
	}
	return results, g.Wait()
}

// fold writes a resolved batch into the job progress.
func (s *Scheduler) fold(job *Job, results []fetchResult, completed, start int) (int, BatchReport) {
	var report BatchReport
	now := s.now()
	job.update(func(p *domain.Progress) {
		for _, res := range results {
			switch res.outcome {
			case outcomeFetched:
				report.Fetched++
				completed++
			case outcomeSkipped:
				report.Skipped++
				completed++
			case outcomeFailed:
				report.Failed++
				kind, _ := fetch.KindOf(res.err)
				p.Errors = append(p.Errors, domain.FetchError{
					Book:      res.resource.Book.Name,
					Chapter:   res.resource.Chapter,
					Kind:      string(kind),
					Message:   res.err.Error(),
					Timestamp: res.at,
				})
			}
		}
		if len(results) > 0 {
			last := results[len(results)-1].resource
			p.CurrentBook = last.Book.Name
			p.CurrentChapter = last.Chapter
			p.Message = fmt.Sprintf("Downloading %s %d...", last.Book.Name, last.Chapter)
		}
		p.CompletedChapters = completed
		p.Percentage = domain.Percent(completed, p.TotalChapters)
		if done := completed - start; completed > ETAThreshold && done > 0 {
			perUnit := now.Sub(p.StartTime) / time.Duration(done)
			eta := now.Add(perUnit * time.Duration(p.TotalChapters-completed))
			p.EstimatedCompletion = &eta
		}
	})
	return completed, report
}

// pause picks the wait before the next batch.
func (s *Scheduler) pause(report BatchReport) time.Duration {
	switch {
	case report.FailureRatio() > RecoveryFailureRatio:
		return s.recoveryPause
	case report.Fetched == 0 && report.Failed == 0:
		return 0
	default:
		return s.throttle.Delay()
	}
}
