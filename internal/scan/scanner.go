package scan

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"bibledownloader/internal/domain"
	"bibledownloader/internal/storage"
)

// Result summarizes a scan. Pending lists the chapters still to fetch in
// catalogue order.
type Result struct {
	Valid   int
	Invalid int
	Missing int
	Pending []domain.Resource
}

// Scanner inspects the raw payload directory of one translation.
type Scanner struct {
	store  *storage.FileStore
	logger zerolog.Logger
}

// NewScanner builds a Scanner over store.
func NewScanner(store *storage.FileStore, logger zerolog.Logger) *Scanner {
	return &Scanner{store: store, logger: logger}
}

// Check classifies a single stored payload.
func (s *Scanner) Check(ctx context.Context, key string, kind domain.PayloadKind) Reason {
	data, err := s.store.Read(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return ReasonMissing
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("scan: read payload")
		return ReasonMissing
	}
	return Validate(data, kind)
}

// IsValid reports whether the payload at key can be reused.
func (s *Scanner) IsValid(ctx context.Context, key string, kind domain.PayloadKind) bool {
	return s.Check(ctx, key, kind) == ReasonNone
}

// Scan classifies every chapter of books and deletes invalid payloads so
// they are fetched again. Per-file errors are logged and never abort the scan.
func (s *Scanner) Scan(ctx context.Context, translation string, books []domain.Book, kind domain.PayloadKind) Result {
	var res Result
	for _, r := range domain.Resources(books) {
		key := storage.RawKey(translation, r.Book, r.Chapter, kind)
		switch reason := s.Check(ctx, key, kind); reason {
		case ReasonNone:
			res.Valid++
			continue
		case ReasonMissing:
			res.Missing++
		default:
			res.Invalid++
			s.logger.Warn().Str("key", key).Str("reason", string(reason)).Msg("scan: invalid payload, will re-download")
			if err := s.store.Remove(key); err != nil && !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn().Err(err).Str("key", key).Msg("scan: delete invalid payload")
			}
		}
		res.Pending = append(res.Pending, r)
	}
	s.logger.Info().
		Str("translation", translation).
		Int("valid", res.Valid).
		Int("invalid", res.Invalid).
		Int("missing", res.Missing).
		Msg("scan complete")
	return res
}
