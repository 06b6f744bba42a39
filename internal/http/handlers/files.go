package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bibledownloader/internal/domain"
	"bibledownloader/internal/storage"
	"bibledownloader/pkg/zip"
)

type fileEntry struct {
	storage.Artifact
	Path string `json:"path"`
}

func downloadPath(a storage.Artifact) string {
	return "/api/files/download/" + a.Type + "/" + a.Name
}

func (a *App) ListFiles(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = "all"
	}
	if kind != "all" && !artifactType(kind) {
		a.error(w, http.StatusBadRequest, "bad_request", "type must be bible, raw, json or all")
		return
	}

	bible, err := a.Files.ListBible()
	if err != nil {
		a.listFailed(w, err)
		return
	}
	raw, err := a.Files.ListDirs(storage.DirRaw, ".html", ".json")
	if err != nil {
		a.listFailed(w, err)
		return
	}
	structured, err := a.Files.ListDirs(storage.DirJSON, ".json")
	if err != nil {
		a.listFailed(w, err)
		return
	}

	groups := map[string][]storage.Artifact{
		storage.DirBible: bible,
		storage.DirRaw:   raw,
		storage.DirJSON:  structured,
	}
	files := []fileEntry{}
	for _, t := range []string{storage.DirBible, storage.DirRaw, storage.DirJSON} {
		if kind != "all" && kind != t {
			continue
		}
		for _, art := range groups[t] {
			files = append(files, fileEntry{Artifact: art, Path: downloadPath(art)})
		}
	}
	a.ok(w, map[string]any{
		"files": files,
		"count": map[string]int{
			"bible": len(bible),
			"raw":   len(raw),
			"json":  len(structured),
			"total": len(bible) + len(raw) + len(structured),
		},
	})
}

func (a *App) listFailed(w http.ResponseWriter, err error) {
	a.Logger.Error().Err(err).Msg("list artifacts")
	a.error(w, http.StatusInternalServerError, "internal", "failed to list files")
}

// DownloadFile serves a .bible file directly and raw or structured
// directories as zip archives.
func (a *App) DownloadFile(w http.ResponseWriter, r *http.Request) {
	kind, name, ok := a.artifactParams(w, r)
	if !ok {
		return
	}
	if kind == storage.DirBible {
		a.serveBible(w, r, name)
		return
	}

	dirKey := kind + "/" + name
	names, err := a.Files.Files(dirKey)
	if err != nil {
		a.listFailed(w, err)
		return
	}
	if len(names) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "Directory not found")
		return
	}
	dir, err := a.Files.Path(dirKey)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "Invalid directory name")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s.zip", name, kind))
	w.WriteHeader(http.StatusOK)
	if err := zip.Write(w, zip.DirEntries(dir, name, names)); err != nil {
		a.Logger.Error().Err(err).Str("dir", dirKey).Msg("stream zip")
	}
}

func (a *App) serveBible(w http.ResponseWriter, r *http.Request, name string) {
	key := storage.DirBible + "/" + name
	if !a.Files.Exists(key) {
		a.error(w, http.StatusNotFound, "not_found", "File not found")
		return
	}
	path, err := a.Files.Path(key)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "Invalid filename")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, path)
}

func (a *App) DeleteFile(w http.ResponseWriter, r *http.Request) {
	kind, name, ok := a.artifactParams(w, r)
	if !ok {
		return
	}
	err := a.Files.Remove(kind + "/" + name)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "File or directory not found")
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("type", kind).Str("name", name).Msg("delete artifact")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete file or directory")
		return
	}
	a.Logger.Info().Str("type", kind).Str("name", name).Msg("artifact deleted")
	what := "Directory"
	if kind == storage.DirBible {
		what = "File"
	}
	a.ok(w, map[string]any{"message": what + " deleted successfully"})
}

// artifactParams validates the {type} and {name} URL parameters.
func (a *App) artifactParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	kind := chi.URLParam(r, "type")
	name := chi.URLParam(r, "name")
	if !artifactType(kind) {
		a.error(w, http.StatusBadRequest, "bad_request", "type must be bible, raw or json")
		return "", "", false
	}
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		a.error(w, http.StatusBadRequest, "bad_request", "Invalid file/directory name")
		return "", "", false
	}
	if kind == storage.DirBible && !strings.HasSuffix(name, ".bible") {
		a.error(w, http.StatusBadRequest, "bad_request", "Bible file must have .bible extension")
		return "", "", false
	}
	return kind, name, true
}

func artifactType(kind string) bool {
	return kind == storage.DirBible || kind == storage.DirRaw || kind == storage.DirJSON
}
