package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bibledownloader/internal/domain"
	"bibledownloader/internal/fetch"
	"bibledownloader/internal/scan"
	"bibledownloader/internal/storage"
	"bibledownloader/internal/throttle"
)

type outcome int

const (
	outcomeFetched outcome = iota
	outcomeSkipped
	outcomeFailed
)

// fetchResult is the private record one fetch hands back to the scheduler.
type fetchResult struct {
	resource domain.Resource
	outcome  outcome
	latency  time.Duration
	err      error
	at       time.Time
}

// FetchUnit downloads a single chapter of one translation.
type FetchUnit struct {
	translation domain.Translation
	source      domain.Source
	fetcher     fetch.Fetcher
	store       *storage.FileStore
	scanner     *scan.Scanner
	throttle    *throttle.Throttle
	pace        Sleeper
	logger      zerolog.Logger
	now         func() time.Time
}

// Run fetches r unless a valid payload is already stored. Skips do not
// touch the throttle. A network fetch first waits for its throttle slot and
// reports its outcome back.
func (u *FetchUnit) Run(ctx context.Context, r domain.Resource) fetchResult {
	kind := u.source.Payload
	key := storage.RawKey(u.translation.Code, r.Book, r.Chapter, kind)
	if u.scanner.IsValid(ctx, key, kind) {
		return fetchResult{resource: r, outcome: outcomeSkipped, at: u.now()}
	}

	url, err := fetch.BuildURL(u.source, u.translation, r.Book, r.Chapter)
	if err != nil {
		return fetchResult{resource: r, outcome: outcomeFailed, err: err, at: u.now()}
	}

	wait, release := u.throttle.Reserve()
	if err := u.pace(ctx, wait); err != nil {
		release()
		return fetchResult{resource: r, outcome: outcomeFailed, err: err, at: u.now()}
	}

	resp, err := u.fetcher.Fetch(ctx, url)
	if err != nil {
		u.throttle.Failure(fetch.IsRateLimited(err))
		u.logger.Warn().Err(err).
			Str("book", r.Book.Code).
			Int("chapter", r.Chapter).
			Msg("fetch chapter failed")
		return fetchResult{resource: r, outcome: outcomeFailed, err: err, at: u.now()}
	}

	if _, err := u.store.Write(ctx, key, resp.Body); err != nil {
		u.throttle.Failure(false)
		return fetchResult{resource: r, outcome: outcomeFailed, err: fmt.Errorf("store %s: %w", key, err), at: u.now()}
	}
	u.throttle.Success()
	u.logger.Debug().
		Str("book", r.Book.Code).
		Int("chapter", r.Chapter).
		Dur("latency", resp.Latency).
		Int("bytes", len(resp.Body)).
		Msg("chapter fetched")
	return fetchResult{resource: r, outcome: outcomeFetched, latency: resp.Latency, at: u.now()}
}
