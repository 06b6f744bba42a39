// Package pipeline runs download jobs: resume scan, batched fetching with
// adaptive pacing, then extraction and assembly of the requested artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bibledownloader/internal/assemble"
	"bibledownloader/internal/domain"
	"bibledownloader/internal/extract"
	"bibledownloader/internal/fetch"
	"bibledownloader/internal/scan"
	"bibledownloader/internal/storage"
	"bibledownloader/internal/throttle"
)

// Runner executes jobs against one artifact store.
type Runner struct {
	fetcher       fetch.Fetcher
	store         *storage.FileStore
	scanner       *scan.Scanner
	logger        zerolog.Logger
	recoveryPause time.Duration
	sleep         Sleeper
	pace          Sleeper
	now           func() time.Time
	throttleOpts  []throttle.Option
	concurrency   func(source string, speed domain.Speed) int
	onBatch       func(BatchReport)
	onStatus      func(job *Job, status domain.JobStatus)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithRecoveryPause sets the pause taken after a batch with a high failure ratio.
func WithRecoveryPause(d time.Duration) Option {
	return func(r *Runner) { r.recoveryPause = d }
}

// WithSleeper replaces both the inter-batch wait and the per-request wait.
func WithSleeper(s Sleeper) Option {
	return func(r *Runner) {
		r.sleep = s
		r.pace = s
	}
}

// WithRequestSleeper replaces only the wait before each network fetch.
func WithRequestSleeper(s Sleeper) Option {
	return func(r *Runner) { r.pace = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithThrottleOptions is passed to every job throttle.
func WithThrottleOptions(opts ...throttle.Option) Option {
	return func(r *Runner) { r.throttleOpts = append(r.throttleOpts, opts...) }
}

// WithConcurrency overrides the batch size lookup.
func WithConcurrency(fn func(source string, speed domain.Speed) int) Option {
	return func(r *Runner) { r.concurrency = fn }
}

// WithBatchObserver is called after every folded batch.
func WithBatchObserver(fn func(BatchReport)) Option {
	return func(r *Runner) { r.onBatch = fn }
}

// WithStatusObserver is called after every status the runner moves a job to.
func WithStatusObserver(fn func(job *Job, status domain.JobStatus)) Option {
	return func(r *Runner) { r.onStatus = fn }
}

// NewRunner wires a Runner over store.
func NewRunner(fetcher fetch.Fetcher, store *storage.FileStore, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		fetcher:       fetcher,
		store:         store,
		scanner:       scan.NewScanner(store, logger),
		logger:        logger,
		recoveryPause: DefaultRecoveryPause,
		sleep:         sleepContext,
		pace:          sleepContext,
		now:           time.Now,
		concurrency:   throttle.Concurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the artifact store.
func (r *Runner) Store() *storage.FileStore {
	return r.store
}

// Run drives job to a terminal status. It returns the fatal error of a
// failed job and nil for completed or cancelled ones.
func (r *Runner) Run(ctx context.Context, job *Job) error {
	log := r.logger.With().
		Str("job_id", job.ID).
		Str("translation", job.Translation.Code).
		Str("source", job.Source.Name).
		Logger()

	if !fetch.KnownSource(job.Source.Name) {
		return r.fail(job, log, fetch.ConfigurationError("unknown source: %s", job.Source.Name))
	}
	if err := r.transition(job, domain.JobStatusFetching, "Scanning existing files...", r.now()); err != nil {
		return r.settle(job, log, err)
	}

	res := r.scanner.Scan(ctx, job.Translation.Code, job.Books, job.Source.Payload)
	job.update(func(p *domain.Progress) {
		p.CompletedChapters = res.Valid
		p.Percentage = domain.Percent(res.Valid, p.TotalChapters)
		if res.Valid > 0 {
			p.Message = fmt.Sprintf("Found %d existing valid files, %d files need downloading...", res.Valid, len(res.Pending))
		} else {
			p.Message = "Starting download..."
		}
	})

	thr := throttle.New(job.Speed, job.Source.Name, r.throttleOpts...)
	sched := &Scheduler{
		unit: &FetchUnit{
			translation: job.Translation,
			source:      job.Source,
			fetcher:     r.fetcher,
			store:       r.store,
			scanner:     r.scanner,
			throttle:    thr,
			pace:        r.pace,
			logger:      log,
			now:         r.now,
		},
		throttle:      thr,
		concurrency:   r.concurrency(job.Source.Name, job.Speed),
		recoveryPause: r.recoveryPause,
		sleep:         r.sleep,
		now:           r.now,
		logger:        log,
		onBatch:       r.onBatch,
	}
	if err := sched.Run(ctx, job, res.Pending, res.Valid); err != nil {
		if ctx.Err() != nil {
			_ = job.RequestCancel()
			return r.settle(job, log, err)
		}
		return r.fail(job, log, err)
	}
	if job.CancelRequested() {
		return r.settle(job, log, nil)
	}

	if job.Mode.Converts() {
		if err := r.transition(job, domain.JobStatusConverting, "Converting downloaded chapters...", r.now()); err != nil {
			return r.settle(job, log, err)
		}
		if err := r.convert(ctx, job, log); err != nil {
			if job.CancelRequested() || ctx.Err() != nil {
				_ = job.RequestCancel()
				return r.settle(job, log, nil)
			}
			return r.fail(job, log, err)
		}
	}

	if err := r.transition(job, domain.JobStatusCompleted, "Download completed successfully", r.now()); err != nil {
		return r.settle(job, log, err)
	}
	snap := job.Snapshot()
	log.Info().
		Int("completed", snap.CompletedChapters).
		Int("total", snap.TotalChapters).
		Int("errors", len(snap.Errors)).
		Msg("job completed")
	return nil
}

func (r *Runner) transition(job *Job, status domain.JobStatus, message string, now time.Time) error {
	if err := job.transition(status, message, now); err != nil {
		return err
	}
	if r.onStatus != nil {
		r.onStatus(job, status)
	}
	return nil
}

// settle finishes a job whose cancellation was requested. err is the
// transition or context error that revealed the cancellation.
func (r *Runner) settle(job *Job, log zerolog.Logger, err error) error {
	if !job.CancelRequested() {
		if err == nil {
			err = errors.New("job stopped without cancellation")
		}
		return r.fail(job, log, err)
	}
	if terr := r.transition(job, domain.JobStatusCancelled, "Download cancelled", r.now()); terr != nil {
		log.Error().Err(terr).Msg("cancel job")
		return terr
	}
	log.Info().Msg("job cancelled")
	return nil
}

func (r *Runner) fail(job *Job, log zerolog.Logger, err error) error {
	now := r.now()
	job.appendError(domain.FetchError{Message: err.Error(), Timestamp: now})
	if terr := r.transition(job, domain.JobStatusFailed, "Download failed: "+err.Error(), now); terr != nil {
		log.Error().Err(terr).Msg("fail job")
	}
	log.Error().Err(err).Msg("job failed")
	return err
}

// convert extracts every stored chapter and writes the requested artifacts.
func (r *Runner) convert(ctx context.Context, job *Job, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out, err := Convert(ctx, r.store, job.Translation, job.Source, job.Books, job.Mode, assemble.Options{
		OnBook: func(b domain.Book) {
			if job.CancelRequested() {
				cancel()
				return
			}
			job.update(func(p *domain.Progress) {
				p.CurrentBook = b.Name
				p.CurrentChapter = 0
				p.Message = fmt.Sprintf("Converting %s...", b.Name)
			})
		},
		OnProblem: func(p assemble.Problem) {
			job.appendError(problemError(p, r.now()))
			log.Debug().Err(p.Err).Str("book", p.Book.Code).Int("chapter", p.Chapter).Msg("placeholder chapter")
		},
	})
	if err != nil {
		return err
	}
	log.Info().Int("placeholders", out.Placeholders).Int("books", len(out.Books)).Msg("artifacts written")
	return nil
}

func problemError(p assemble.Problem, now time.Time) domain.FetchError {
	e := domain.FetchError{Book: p.Book.Name, Chapter: p.Chapter, Kind: string(fetch.KindExtraction), Timestamp: now}
	switch {
	case p.Err == nil:
		e.Message = "no verses extracted"
	case errors.Is(p.Err, domain.ErrNotFound):
		e.Kind = "missing"
		e.Message = "raw payload missing"
	default:
		e.Message = p.Err.Error()
	}
	return e
}

// Convert assembles the artifacts of mode from the raw payloads in store and
// writes them. Observers in opts are kept; the artifact selection comes
// from mode.
func Convert(ctx context.Context, store *storage.FileStore, t domain.Translation, src domain.Source, books []domain.Book, mode domain.Mode, opts assemble.Options) (*assemble.Output, error) {
	ex := extract.For(src.Name)
	load := func(ctx context.Context, book domain.Book, chapter int) ([]domain.ContentUnit, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := store.Read(ctx, storage.RawKey(t.Code, book, chapter, src.Payload))
		if err != nil {
			return nil, err
		}
		return extract.Chapter(ex, data, book, chapter)
	}

	opts.Text = mode.WantsText()
	opts.Structured = mode.WantsStructured()
	out, err := assemble.Assemble(ctx, t, books, load, opts)
	if err != nil {
		return nil, err
	}

	if opts.Text {
		if _, err := store.Write(ctx, storage.BibleKey(t.ShortName), out.Text); err != nil {
			return nil, fmt.Errorf("write text artifact: %w", err)
		}
	}
	if opts.Structured {
		for _, b := range out.Books {
			if _, err := store.Write(ctx, storage.JSONBookKey(t.Code, b.Code), b.Data); err != nil {
				return nil, fmt.Errorf("write %s artifact: %w", b.Code, err)
			}
		}
		if _, err := store.Write(ctx, storage.JSONIndexKey(t.Code), out.Index); err != nil {
			return nil, fmt.Errorf("write index artifact: %w", err)
		}
	}
	return out, nil
}
