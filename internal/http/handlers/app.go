// Package handlers implements the HTTP API over the download job service,
// the translation catalogue and the artifact store.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"bibledownloader/internal/catalog"
	"bibledownloader/internal/domain"
	"bibledownloader/internal/jobs"
	"bibledownloader/internal/storage"
)

const defaultStreamInterval = time.Second

type App struct {
	Jobs    *jobs.Service
	Catalog *catalog.Catalog
	Files   *storage.FileStore
	Logger  zerolog.Logger

	// StreamInterval is the progress frame period of Stream.
	StreamInterval time.Duration
}

func NewApp(svc *jobs.Service, cat *catalog.Catalog, files *storage.FileStore, logger zerolog.Logger) *App {
	return &App{Jobs: svc, Catalog: cat, Files: files, Logger: logger, StreamInterval: defaultStreamInterval}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ok writes a success envelope carrying fields.
func (a *App) ok(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	a.json(w, http.StatusOK, body)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]any{"success": false, "code": errCode, "error": msg})
}

// domainError maps service errors onto HTTP statuses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownTranslation):
		a.error(w, http.StatusNotFound, "not_found", "Translation not found")
	case errors.Is(err, domain.ErrJobNotFound):
		a.error(w, http.StatusNotFound, "not_found", "Download not found")
	case errors.Is(err, domain.ErrLegalAgreementRequired):
		a.json(w, http.StatusBadRequest, map[string]any{
			"success":                false,
			"code":                   "legal_agreement_required",
			"error":                  "Legal agreement required for copyrighted material",
			"requiresLegalAgreement": true,
		})
	case errors.Is(err, domain.ErrInvalidMode), errors.Is(err, domain.ErrInvalidSpeed):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrAlreadyTerminal):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrHistoryUnavailable):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "Job history requires a database")
	default:
		a.Logger.Error().Err(err).Msg("unhandled service error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
