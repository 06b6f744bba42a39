package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"bibledownloader/internal/http/handlers"
	"bibledownloader/internal/middleware"
)

// Options configures the cross-cutting middleware of the router.
type Options struct {
	CORSOrigins []string
	// StartLimit caps job creation per client IP per minute; 0 disables it.
	StartLimit    int
	CountryLookup middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N("en", opts.CountryLookup),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.Health)

		r.Route("/downloads", func(r chi.Router) {
			r.With(middleware.RateLimit(opts.StartLimit, time.Minute)).Post("/start", app.StartDownload)
			r.Get("/progress/{id}", app.DownloadProgress)
			r.Post("/cancel/{id}", app.CancelDownload)
			r.Get("/active", app.ActiveDownloads)
			r.Post("/cleanup", app.CleanupDownloads)
			r.Get("/history", app.DownloadHistory)
			r.Get("/{id}/stream", app.StreamDownload)
		})

		r.Route("/translations", func(r chi.Router) {
			r.Get("/", app.ListTranslations)
			r.Get("/public-domain/list", app.PublicDomainTranslations)
			r.Get("/legal/disclaimer", app.LegalDisclaimer)
			r.Get("/meta/languages", app.TranslationLanguages)
			r.Get("/language/{lang}", app.TranslationsByLanguage)
			r.Get("/{id}", app.GetTranslation)
		})

		r.Route("/files", func(r chi.Router) {
			r.Get("/", app.ListFiles)
			r.Get("/download/{type}/{name}", app.DownloadFile)
			r.Delete("/{type}/{name}", app.DeleteFile)
		})
	})

	return r
}
