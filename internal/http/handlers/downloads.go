package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bibledownloader/internal/jobs"
)

type startRequest struct {
	TranslationID  string `json:"translationId"`
	Mode           string `json:"mode"`
	Speed          string `json:"speed"`
	LegalAgreement bool   `json:"legalAgreement"`
}

func (a *App) StartDownload(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.TranslationID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "Translation ID is required")
		return
	}
	snap, err := a.Jobs.CreateJob(r.Context(), jobs.CreateRequest{
		TranslationCode: req.TranslationID,
		Mode:            req.Mode,
		Speed:           req.Speed,
		LegalAgreement:  req.LegalAgreement,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.ok(w, map[string]any{
		"downloadId":    snap.ID,
		"translationId": snap.Translation,
		"mode":          snap.Mode,
		"speed":         snap.Speed,
		"status":        snap.Status,
		"message":       "Download started successfully",
	})
}

func (a *App) DownloadProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := a.Jobs.Progress(id)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.ok(w, map[string]any{
		"downloadId":    snap.ID,
		"translationId": snap.Translation,
		"mode":          snap.Mode,
		"status":        snap.Status,
		"progress":      snap.Progress,
		"endTime":       snap.FinishedAt,
	})
}

func (a *App) CancelDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Jobs.Cancel(id); err != nil {
		a.domainError(w, err)
		return
	}
	snap, err := a.Jobs.Progress(id)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.ok(w, map[string]any{
		"downloadId": id,
		"status":     snap.Status,
		"message":    "Download cancellation requested",
	})
}

func (a *App) ActiveDownloads(w http.ResponseWriter, r *http.Request) {
	list := a.Jobs.Active()
	a.ok(w, map[string]any{"downloads": list, "count": len(list)})
}

func (a *App) CleanupDownloads(w http.ResponseWriter, r *http.Request) {
	cleaned, remaining := a.Jobs.Cleanup(time.Now())
	a.ok(w, map[string]any{
		"cleaned":   cleaned,
		"remaining": remaining,
		"message":   fmt.Sprintf("Cleaned up %d old downloads", cleaned),
	})
}

func (a *App) DownloadHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := a.Jobs.History(r.Context(), limit)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.ok(w, map[string]any{"downloads": records, "count": len(records)})
}
