package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibledownloader/internal/domain"
	"bibledownloader/internal/fetch"
	"bibledownloader/internal/storage"
	"bibledownloader/internal/throttle"
)

var (
	testSource = domain.Source{
		Name:     "bible.com",
		BaseURL:  "https://www.bible.com",
		Template: "/bible/{id}/{book}.{chapter}",
		Payload:  domain.PayloadHTML,
	}
	testTranslation = domain.Translation{
		Code:           "KJV",
		FullName:       "King James Version",
		ShortName:      "KJV",
		SheetName:      "KJV",
		Language:       "EN",
		License:        "Public domain",
		IsPublicDomain: true,
		Source:         "bible.com",
		BibleComID:     1,
	}
	testBooks = []domain.Book{
		{Index: 1, Code: "GEN", Name: "Genesis", Chapters: 3},
		{Index: 2, Code: "EXO", Name: "Exodus", Chapters: 2},
	}
	testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func chapterPage(code string, chapter int) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>%[1]s %[2]d</title></head><body>`+
		`<span data-usfm="%[1]s.%[2]d.1"><span class="label">1</span><span class="content">Verse one of %[1]s %[2]d</span></span>`+
		`<span data-usfm="%[1]s.%[2]d.2"><span class="label">2</span><span class="content">Verse two</span></span>`+
		`</body></html>`, code, chapter)
}

func chapterURL(code string, chapter int) string {
	return fmt.Sprintf("https://www.bible.com/bible/1/%s.%d", code, chapter)
}

type fakeFetcher struct {
	mu     sync.Mutex
	calls  []string
	errors map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	err := f.errors[url]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	// url ends in CODE.N
	ref := url[strings.LastIndex(url, "/")+1:]
	var code string
	var chapter int
	if _, err := fmt.Sscanf(strings.Replace(ref, ".", " ", 1), "%s %d", &code, &chapter); err != nil {
		return nil, err
	}
	return &fetch.Response{StatusCode: 200, Body: []byte(chapterPage(code, chapter)), Latency: time.Millisecond}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingSleeper struct {
	mu     sync.Mutex
	waits  []time.Duration
	onCall func(n int)
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	n := len(s.waits)
	s.mu.Unlock()
	if s.onCall != nil {
		s.onCall(n)
	}
	return nil
}

func newTestRunner(t *testing.T, f fetch.Fetcher, sleeper *recordingSleeper, concurrency int, opts ...Option) (*Runner, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	base := []Option{
		WithSleeper(sleeper.Sleep),
		WithRequestSleeper(func(context.Context, time.Duration) error { return nil }),
		WithClock(func() time.Time { return testNow }),
		WithThrottleOptions(throttle.WithRandom(func() float64 { return 0.5 })),
		WithConcurrency(func(string, domain.Speed) int { return concurrency }),
	}
	return NewRunner(f, store, zerolog.Nop(), append(base, opts...)...), store
}

func newTestJob(t domain.Translation, mode domain.Mode) *Job {
	return NewJob("job-1", t, testSource, testBooks, mode, domain.SpeedBalanced, testNow)
}

func TestRunFetchesAndAssembles(t *testing.T) {
	f := &fakeFetcher{}
	sleeper := &recordingSleeper{}
	var reports []BatchReport
	runner, store := newTestRunner(t, f, sleeper, 2, WithBatchObserver(func(r BatchReport) { reports = append(reports, r) }))
	job := newTestJob(testTranslation, domain.ModeBoth)

	require.NoError(t, runner.Run(context.Background(), job))

	snap := job.Snapshot()
	assert.Equal(t, domain.JobStatusCompleted, snap.Status)
	assert.Equal(t, 5, snap.CompletedChapters)
	assert.Equal(t, 5, snap.TotalChapters)
	assert.Equal(t, 100, snap.Percentage)
	assert.Empty(t, snap.Errors)
	require.NotNil(t, snap.FinishedAt)
	assert.Equal(t, 5, f.callCount())

	require.Len(t, reports, 3)
	assert.Equal(t, BatchReport{Fetched: 2, Pause: 200 * time.Millisecond}, reports[0])
	assert.Equal(t, BatchReport{Fetched: 1}, reports[2])
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, sleeper.waits)

	text, err := store.Read(context.Background(), storage.BibleKey("KJV"))
	require.NoError(t, err)
	body := strings.SplitN(string(text), "~~~~\n", 2)
	require.Len(t, body, 2)
	lines := strings.Split(body[1], "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "{01001001} {Verse one of GEN 1}", lines[0])
	assert.Equal(t, "{02002002} {Verse two}", lines[9])

	assert.True(t, store.Exists(storage.JSONBookKey("KJV", "GEN")))
	assert.True(t, store.Exists(storage.JSONBookKey("KJV", "EXO")))
	assert.True(t, store.Exists(storage.JSONIndexKey("KJV")))

	select {
	case <-job.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestRunReportsStatusesForMode(t *testing.T) {
	tests := []struct {
		mode domain.Mode
		want []domain.JobStatus
	}{
		{domain.ModeFetchOnly, []domain.JobStatus{domain.JobStatusFetching, domain.JobStatusCompleted}},
		{domain.ModeBoth, []domain.JobStatus{domain.JobStatusFetching, domain.JobStatusConverting, domain.JobStatusCompleted}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			var statuses []domain.JobStatus
			runner, _ := newTestRunner(t, &fakeFetcher{}, &recordingSleeper{}, 2,
				WithStatusObserver(func(_ *Job, s domain.JobStatus) { statuses = append(statuses, s) }))
			job := newTestJob(testTranslation, tt.mode)

			require.NoError(t, runner.Run(context.Background(), job))
			assert.Equal(t, tt.want, statuses)
		})
	}
}

func TestFetchWaitsForThrottleSlot(t *testing.T) {
	f := &fakeFetcher{}
	pacer := &recordingSleeper{}
	sleeper := &recordingSleeper{}
	runner, store := newTestRunner(t, f, sleeper, 5,
		WithRequestSleeper(pacer.Sleep),
		WithThrottleOptions(throttle.WithClock(func() time.Time { return testNow })))
	ctx := context.Background()
	for _, r := range domain.Resources(testBooks)[:2] {
		_, err := store.Write(ctx, storage.RawKey("KJV", r.Book, r.Chapter, domain.PayloadHTML), []byte(chapterPage(r.Book.Code, r.Chapter)))
		require.NoError(t, err)
	}
	job := newTestJob(testTranslation, domain.ModeFetchOnly)

	require.NoError(t, runner.Run(ctx, job))

	assert.Equal(t, 3, f.callCount())
	assert.Empty(t, sleeper.waits)
	require.Len(t, pacer.waits, 3)
	waits := append([]time.Duration(nil), pacer.waits...)
	sort.Slice(waits, func(i, j int) bool { return waits[i] < waits[j] })
	for i, want := range []time.Duration{0, 200 * time.Millisecond, 400 * time.Millisecond} {
		assert.InDelta(t, float64(want), float64(waits[i]), float64(time.Microsecond))
	}
}

func TestFetchStopsWhenPacingCancelled(t *testing.T) {
	f := &fakeFetcher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner, _ := newTestRunner(t, f, &recordingSleeper{}, 2,
		WithRequestSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	job := newTestJob(testTranslation, domain.ModeFetchOnly)
	unit := &FetchUnit{
		translation: testTranslation,
		source:      testSource,
		fetcher:     f,
		store:       runner.store,
		scanner:     runner.scanner,
		throttle:    throttle.New(job.Speed, testSource.Name),
		pace:        runner.pace,
		logger:      zerolog.Nop(),
		now:         func() time.Time { return testNow },
	}

	res := unit.Run(ctx, domain.Resources(testBooks)[0])
	assert.Equal(t, outcomeFailed, res.outcome)
	assert.ErrorIs(t, res.err, context.Canceled)
	assert.Zero(t, f.callCount())
}

func TestRunResumesFromValidPayloads(t *testing.T) {
	f := &fakeFetcher{}
	sleeper := &recordingSleeper{}
	runner, store := newTestRunner(t, f, sleeper, 2)
	ctx := context.Background()
	for _, r := range domain.Resources(testBooks) {
		_, err := store.Write(ctx, storage.RawKey("KJV", r.Book, r.Chapter, domain.PayloadHTML), []byte(chapterPage(r.Book.Code, r.Chapter)))
		require.NoError(t, err)
	}
	job := newTestJob(testTranslation, domain.ModeFetchOnly)

	require.NoError(t, runner.Run(ctx, job))

	snap := job.Snapshot()
	assert.Equal(t, domain.JobStatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Percentage)
	assert.Zero(t, f.callCount())
	assert.Empty(t, sleeper.waits)
	assert.False(t, store.Exists(storage.BibleKey("KJV")))
}

func TestRunRefetchesInvalidPayload(t *testing.T) {
	f := &fakeFetcher{}
	runner, store := newTestRunner(t, f, &recordingSleeper{}, 5)
	ctx := context.Background()
	for _, r := range domain.Resources(testBooks) {
		data := chapterPage(r.Book.Code, r.Chapter)
		if r.Book.Code == "EXO" && r.Chapter == 2 {
			data = "<html>404 not found</html>"
		}
		_, err := store.Write(ctx, storage.RawKey("KJV", r.Book, r.Chapter, domain.PayloadHTML), []byte(data))
		require.NoError(t, err)
	}
	job := newTestJob(testTranslation, domain.ModeFetchOnly)

	require.NoError(t, runner.Run(ctx, job))
	assert.Equal(t, []string{chapterURL("EXO", 2)}, f.calls)
	assert.Equal(t, 100, job.Snapshot().Percentage)
}

func TestBatchPauseSelection(t *testing.T) {
	networkErr := &fetch.Error{Kind: fetch.KindNetwork, Message: "HTTP 500"}
	tests := []struct {
		name        string
		concurrency int
		failing     []string
		wantFirst   time.Duration
		wantErrors  int
	}{
		{
			name:        "failure ratio above threshold takes recovery pause",
			concurrency: 2,
			failing:     []string{chapterURL("GEN", 1), chapterURL("GEN", 2)},
			wantFirst:   7 * time.Second,
			wantErrors:  2,
		},
		{
			name:        "one failure in four keeps throttle delay",
			concurrency: 4,
			failing:     []string{chapterURL("GEN", 2)},
			wantFirst:   200 * time.Millisecond,
			wantErrors:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{errors: map[string]error{}}
			for _, u := range tt.failing {
				f.errors[u] = networkErr
			}
			sleeper := &recordingSleeper{}
			runner, _ := newTestRunner(t, f, sleeper, tt.concurrency, WithRecoveryPause(7*time.Second))
			job := newTestJob(testTranslation, domain.ModeFetchOnly)

			require.NoError(t, runner.Run(context.Background(), job))

			require.NotEmpty(t, sleeper.waits)
			assert.Equal(t, tt.wantFirst, sleeper.waits[0])
			snap := job.Snapshot()
			assert.Equal(t, domain.JobStatusCompleted, snap.Status)
			require.Len(t, snap.Errors, tt.wantErrors)
			assert.Equal(t, string(fetch.KindNetwork), snap.Errors[0].Kind)
			assert.Equal(t, "Genesis", snap.Errors[0].Book)
			assert.Equal(t, 5-tt.wantErrors, snap.CompletedChapters)
			assert.Equal(t, domain.Percent(5-tt.wantErrors, 5), snap.Percentage)
		})
	}
}

func TestBatchAtFailureThresholdKeepsThrottleDelay(t *testing.T) {
	books := []domain.Book{{Index: 1, Code: "GEN", Name: "Genesis", Chapters: 12}}
	f := &fakeFetcher{errors: map[string]error{}}
	for ch := 1; ch <= 3; ch++ {
		f.errors[chapterURL("GEN", ch)] = &fetch.Error{Kind: fetch.KindNetwork, Message: "HTTP 500"}
	}
	sleeper := &recordingSleeper{}
	var reports []BatchReport
	runner, _ := newTestRunner(t, f, sleeper, 10,
		WithRecoveryPause(7*time.Second),
		WithBatchObserver(func(r BatchReport) { reports = append(reports, r) }))
	job := NewJob("job-4", testTranslation, testSource, books, domain.ModeFetchOnly, domain.SpeedBalanced, testNow)

	require.NoError(t, runner.Run(context.Background(), job))

	require.Len(t, reports, 2)
	assert.Equal(t, 3, reports[0].Failed)
	assert.InDelta(t, 0.3, reports[0].FailureRatio(), 1e-9)
	require.Len(t, sleeper.waits, 1)
	assert.GreaterOrEqual(t, sleeper.waits[0], 100*time.Millisecond)
	assert.LessOrEqual(t, sleeper.waits[0], 200*time.Millisecond)
	assert.Equal(t, 9, job.Snapshot().CompletedChapters)
}

func TestRunConfigurationErrorFailsJob(t *testing.T) {
	f := &fakeFetcher{}
	runner, _ := newTestRunner(t, f, &recordingSleeper{}, 2)
	noID := testTranslation
	noID.BibleComID = 0
	job := newTestJob(noID, domain.ModeText)

	err := runner.Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, fetch.IsFatal(err))

	snap := job.Snapshot()
	assert.Equal(t, domain.JobStatusFailed, snap.Status)
	assert.Zero(t, f.callCount())
	assert.Contains(t, snap.Message, "missing bible.com ID")
	require.NotEmpty(t, snap.Errors)
	assert.Empty(t, snap.Errors[len(snap.Errors)-1].Book)
}

func TestRunUnknownSourceFailsJob(t *testing.T) {
	runner, _ := newTestRunner(t, &fakeFetcher{}, &recordingSleeper{}, 2)
	job := NewJob("job-2", testTranslation, domain.Source{Name: "example.org"}, testBooks, domain.ModeText, domain.SpeedBalanced, testNow)

	err := runner.Run(context.Background(), job)
	assert.True(t, fetch.IsFatal(err))
	assert.Equal(t, domain.JobStatusFailed, job.Status())
}

func TestCancelStopsBeforeNextBatch(t *testing.T) {
	f := &fakeFetcher{}
	job := newTestJob(testTranslation, domain.ModeText)
	sleeper := &recordingSleeper{onCall: func(n int) {
		if n == 1 {
			require.NoError(t, job.RequestCancel())
		}
	}}
	runner, store := newTestRunner(t, f, sleeper, 2)

	require.NoError(t, runner.Run(context.Background(), job))

	snap := job.Snapshot()
	assert.Equal(t, domain.JobStatusCancelled, snap.Status)
	assert.Equal(t, 2, snap.CompletedChapters)
	assert.Equal(t, 40, snap.Percentage)
	assert.Equal(t, 2, f.callCount())
	assert.False(t, store.Exists(storage.BibleKey("KJV")))
}

func TestContextCancellationCancelsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleeper := &recordingSleeper{onCall: func(int) { cancel() }}
	runner, _ := newTestRunner(t, &fakeFetcher{}, sleeper, 2)
	job := newTestJob(testTranslation, domain.ModeFetchOnly)

	require.NoError(t, runner.Run(ctx, job))
	assert.Equal(t, domain.JobStatusCancelled, job.Status())
}

func TestRequestCancel(t *testing.T) {
	job := newTestJob(testTranslation, domain.ModeText)
	require.NoError(t, job.RequestCancel())
	assert.True(t, job.CancelRequested())
	assert.Equal(t, domain.JobStatusCancelling, job.Status())
	require.NoError(t, job.RequestCancel())

	require.NoError(t, job.transition(domain.JobStatusCancelled, "Download cancelled", testNow))
	assert.ErrorIs(t, job.RequestCancel(), domain.ErrAlreadyTerminal)
	assert.ErrorIs(t, job.transition(domain.JobStatusFetching, "", testNow), domain.ErrInvalidTransition)
}

func TestFoldEstimatesCompletion(t *testing.T) {
	books := []domain.Book{{Index: 1, Code: "GEN", Name: "Genesis", Chapters: 20}}
	job := NewJob("job-3", testTranslation, testSource, books, domain.ModeText, domain.SpeedBalanced, testNow)
	s := &Scheduler{now: func() time.Time { return testNow.Add(time.Minute) }}

	results := make([]fetchResult, 6)
	for i := range results {
		results[i] = fetchResult{resource: domain.Resource{Book: books[0], Chapter: i + 1}, outcome: outcomeFetched}
	}
	completed, report := s.fold(job, results, 0, 0)

	assert.Equal(t, 6, completed)
	assert.Equal(t, 6, report.Fetched)
	snap := job.Snapshot()
	assert.Equal(t, 30, snap.Percentage)
	assert.Equal(t, "Genesis", snap.CurrentBook)
	assert.Equal(t, 6, snap.CurrentChapter)
	require.NotNil(t, snap.EstimatedCompletion)
	assert.Equal(t, testNow.Add(time.Minute+14*10*time.Second), *snap.EstimatedCompletion)

	_, _ = s.fold(job, results[:1], 5, 0)
	assert.Equal(t, 30, job.Snapshot().Percentage)
}
