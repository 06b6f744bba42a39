package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibledownloader/internal/catalog"
	"bibledownloader/internal/domain"
	"bibledownloader/internal/fetch"
	"bibledownloader/internal/pipeline"
	"bibledownloader/internal/storage"
)

const testCatalog = `
sources:
  bible.com:
    baseUrl: https://www.bible.com
    template: /bible/{id}/{book}.{chapter}
translations:
  FREE:
    fullName: Free Edition
    shortName: FREE
    language: EN
    isPublicDomain: true
    source: example.org
  PAID:
    fullName: Paid Edition
    shortName: PAID
    language: EN
    isPublicDomain: false
    source: example.org
  SLOW:
    fullName: Slow Edition
    shortName: SLOW
    language: EN
    isPublicDomain: true
    source: bible.com
    bibleComId: 7
    joel3Bible: true
    mal4Bible: true
`

type blockingFetcher struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
}

func (f *blockingFetcher) Fetch(ctx context.Context, _ string) (*fetch.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.once.Do(func() { close(f.started) })
	<-f.release
	return &fetch.Response{StatusCode: 200, Body: []byte("<html><body>chapter</body></html>")}, nil
}

type memoryHistory struct {
	mu       sync.Mutex
	created  []domain.JobRecord
	finished []domain.JobRecord
}

func (m *memoryHistory) Create(_ context.Context, rec *domain.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, *rec)
	return nil
}

func (m *memoryHistory) Finish(_ context.Context, rec *domain.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, *rec)
	return nil
}

func (m *memoryHistory) ListRecent(_ context.Context, limit int) ([]domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.finished) {
		limit = len(m.finished)
	}
	return append([]domain.JobRecord(nil), m.finished[:limit]...), nil
}

func newTestService(t *testing.T, f fetch.Fetcher, opts ...Option) *Service {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	runner := pipeline.NewRunner(f, store, zerolog.Nop(),
		pipeline.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	n := 0
	var mu sync.Mutex
	base := []Option{WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("job-%d", n)
	})}
	svc := NewService(cat, runner, NewStore(), zerolog.Nop(), append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func waitFor(t *testing.T, svc *Service, id string) domain.JobSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := svc.Wait(ctx, id)
	require.NoError(t, err)
	return snap
}

func TestCreateJobValidation(t *testing.T) {
	svc := newTestService(t, newBlockingFetcher())
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"unknown translation", CreateRequest{TranslationCode: "NOPE"}, domain.ErrUnknownTranslation},
		{"copyrighted without agreement", CreateRequest{TranslationCode: "paid"}, domain.ErrLegalAgreementRequired},
		{"bad mode", CreateRequest{TranslationCode: "FREE", Mode: "pdf"}, domain.ErrInvalidMode},
		{"bad speed", CreateRequest{TranslationCode: "FREE", Speed: "ludicrous"}, domain.ErrInvalidSpeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJob(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, svc.Active())
}

func TestCreateJobWithAgreementRuns(t *testing.T) {
	history := &memoryHistory{}
	svc := newTestService(t, newBlockingFetcher(), WithHistory(history))

	snap, err := svc.CreateJob(context.Background(), CreateRequest{TranslationCode: "paid", LegalAgreement: true, Mode: "both"})
	require.NoError(t, err)
	assert.Equal(t, "PAID", snap.Translation)
	assert.Equal(t, domain.ModeBoth, snap.Mode)
	assert.Equal(t, domain.SpeedBalanced, snap.Speed)
	assert.Equal(t, 1189, snap.TotalChapters)

	final := waitFor(t, svc, snap.ID)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Contains(t, final.Message, "unknown source")

	require.NoError(t, svc.Shutdown(context.Background()))
	history.mu.Lock()
	defer history.mu.Unlock()
	require.Len(t, history.created, 1)
	require.Len(t, history.finished, 1)
	assert.Equal(t, domain.JobStatusFailed, history.finished[0].Status)
	assert.NotNil(t, history.finished[0].FinishedAt)
}

func TestCancelRunningJob(t *testing.T) {
	f := newBlockingFetcher()
	svc := newTestService(t, f)

	snap, err := svc.CreateJob(context.Background(), CreateRequest{TranslationCode: "SLOW", Mode: "download-only"})
	require.NoError(t, err)

	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never started")
	}
	require.NoError(t, svc.Cancel(snap.ID))
	require.NoError(t, svc.Cancel(snap.ID))

	progress, err := svc.Progress(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelling, progress.Status)

	close(f.release)
	final := waitFor(t, svc, snap.ID)
	assert.Equal(t, domain.JobStatusCancelled, final.Status)
	assert.Equal(t, 4, final.CompletedChapters)
	assert.Equal(t, domain.Percent(4, 1189), final.Percentage)

	f.mu.Lock()
	assert.Equal(t, 4, f.calls)
	f.mu.Unlock()

	assert.ErrorIs(t, svc.Cancel(snap.ID), domain.ErrAlreadyTerminal)
}

func TestUnknownJob(t *testing.T) {
	svc := newTestService(t, newBlockingFetcher())
	_, err := svc.Progress("missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	assert.ErrorIs(t, svc.Cancel("missing"), domain.ErrJobNotFound)
	_, err = svc.History(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrHistoryUnavailable)
}

func TestCleanupRemovesOldTerminalJobs(t *testing.T) {
	svc := newTestService(t, newBlockingFetcher(), WithRetention(time.Hour))

	first, err := svc.CreateJob(context.Background(), CreateRequest{TranslationCode: "FREE"})
	require.NoError(t, err)
	waitFor(t, svc, first.ID)
	second, err := svc.CreateJob(context.Background(), CreateRequest{TranslationCode: "FREE"})
	require.NoError(t, err)
	waitFor(t, svc, second.ID)

	active := svc.Active()
	require.Len(t, active, 2)

	cleaned, remaining := svc.Cleanup(time.Now())
	assert.Zero(t, cleaned)
	assert.Equal(t, 2, remaining)

	cleaned, remaining = svc.Cleanup(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 2, cleaned)
	assert.Zero(t, remaining)
	assert.Empty(t, svc.Active())
}
