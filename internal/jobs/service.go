package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bibledownloader/internal/catalog"
	"bibledownloader/internal/domain"
	"bibledownloader/internal/pipeline"
)

const (
	DefaultRetention     = time.Hour
	DefaultSweepInterval = 5 * time.Minute
	historyTimeout       = 5 * time.Second
)

// Runner drives one job to a terminal status.
type Runner interface {
	Run(ctx context.Context, job *pipeline.Job) error
}

// CreateRequest is the input of CreateJob.
type CreateRequest struct {
	TranslationCode string
	Mode            string
	Speed           string
	LegalAgreement  bool
}

// Service creates, inspects and cancels download jobs.
type Service struct {
	catalog   *catalog.Catalog
	runner    Runner
	store     *Store
	history   domain.JobHistoryRepository
	logger    zerolog.Logger
	retention time.Duration
	now       func() time.Time
	newID     func() string

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

// WithHistory records job creation and completion in repo.
func WithHistory(repo domain.JobHistoryRepository) Option {
	return func(s *Service) { s.history = repo }
}

// WithRetention sets how long terminal jobs stay registered.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the job id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService wires a Service. store may be nil.
func NewService(cat *catalog.Catalog, runner Runner, store *Store, logger zerolog.Logger, opts ...Option) *Service {
	if store == nil {
		store = NewStore()
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Service{
		catalog:   cat,
		runner:    runner,
		store:     store,
		logger:    logger,
		retention: DefaultRetention,
		now:       time.Now,
		newID:     func() string { return "download_" + uuid.NewString() },
		baseCtx:   ctx,
		stop:      stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates req, registers a job and starts it in the background.
// Nothing is registered when validation fails.
func (s *Service) CreateJob(ctx context.Context, req CreateRequest) (domain.JobSnapshot, error) {
	t, err := s.catalog.Lookup(req.TranslationCode)
	if err != nil {
		return domain.JobSnapshot{}, err
	}
	if !t.IsPublicDomain && !req.LegalAgreement {
		return domain.JobSnapshot{}, fmt.Errorf("%w: %s", domain.ErrLegalAgreementRequired, t.Code)
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		return domain.JobSnapshot{}, err
	}
	speed, err := domain.ParseSpeed(req.Speed)
	if err != nil {
		return domain.JobSnapshot{}, err
	}
	src, ok := s.catalog.Source(t.Source)
	if !ok {
		// the runner fails the job with a configuration error
		src = domain.Source{Name: t.Source}
	}

	job := pipeline.NewJob(s.newID(), t, src, catalog.BooksFor(t), mode, speed, s.now())
	s.store.Add(job)
	s.recordCreate(ctx, job)

	s.logger.Info().
		Str("job_id", job.ID).
		Str("translation", t.Code).
		Str("mode", string(mode)).
		Str("speed", string(speed)).
		Msg("job created")

	s.wg.Add(1)
	go s.run(job)
	return job.Snapshot(), nil
}

func (s *Service) run(job *pipeline.Job) {
	defer s.wg.Done()
	if err := s.runner.Run(s.baseCtx, job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("job ended with error")
	}
	s.recordFinish(job)
}

// Progress returns a snapshot of the job.
func (s *Service) Progress(id string) (domain.JobSnapshot, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return domain.JobSnapshot{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return job.Snapshot(), nil
}

// Cancel requests cooperative cancellation. Repeated calls while the job is
// cancelling succeed.
func (s *Service) Cancel(id string) error {
	job, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if err := job.RequestCancel(); err != nil {
		return err
	}
	s.logger.Info().Str("job_id", id).Msg("job cancellation requested")
	return nil
}

// Active returns every registered job, newest first.
func (s *Service) Active() []domain.JobSnapshot {
	list := s.store.List()
	out := make([]domain.JobSnapshot, 0, len(list))
	for _, job := range list {
		out = append(out, job.Snapshot())
	}
	return out
}

// Cleanup drops terminal jobs older than the retention window.
func (s *Service) Cleanup(now time.Time) (cleaned, remaining int) {
	cleaned, remaining = s.store.Sweep(now, s.retention)
	if cleaned > 0 {
		s.logger.Info().Int("cleaned", cleaned).Int("remaining", remaining).Msg("swept finished jobs")
	}
	return cleaned, remaining
}

// Run sweeps the registry every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(s.now())
		}
	}
}

// Wait blocks until the job is terminal or ctx is done.
func (s *Service) Wait(ctx context.Context, id string) (domain.JobSnapshot, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return domain.JobSnapshot{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	select {
	case <-job.Done():
		return job.Snapshot(), nil
	case <-ctx.Done():
		return job.Snapshot(), ctx.Err()
	}
}

// History lists recently recorded jobs.
func (s *Service) History(ctx context.Context, limit int) ([]domain.JobRecord, error) {
	if s.history == nil {
		return nil, domain.ErrHistoryUnavailable
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.history.ListRecent(ctx, limit)
}

// Shutdown cancels running jobs and waits for them to settle.
func (s *Service) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) recordCreate(ctx context.Context, job *pipeline.Job) {
	if s.history == nil {
		return
	}
	rec := record(job)
	if err := s.history.Create(ctx, &rec); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("record job creation")
	}
}

func (s *Service) recordFinish(job *pipeline.Job) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	rec := record(job)
	if err := s.history.Finish(ctx, &rec); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("record job result")
	}
}

func record(job *pipeline.Job) domain.JobRecord {
	snap := job.Snapshot()
	return domain.JobRecord{
		ID:          snap.ID,
		Translation: snap.Translation,
		Mode:        snap.Mode,
		Speed:       snap.Speed,
		Status:      snap.Status,
		Completed:   snap.CompletedChapters,
		Total:       snap.TotalChapters,
		ErrorCount:  len(snap.Errors),
		Message:     snap.Message,
		CreatedAt:   snap.CreatedAt,
		FinishedAt:  snap.FinishedAt,
	}
}
