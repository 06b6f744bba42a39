package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bibledownloader/internal/catalog"
	"bibledownloader/internal/domain"
	"bibledownloader/internal/middleware"
)

type translationSummary struct {
	ID             string `json:"id"`
	FullName       string `json:"fullName"`
	ShortName      string `json:"shortName"`
	Language       string `json:"language"`
	License        string `json:"license"`
	IsPublicDomain bool   `json:"isPublicDomain"`
	Source         string `json:"source"`
	Comment        string `json:"comment"`
}

func summarize(list []domain.Translation) []translationSummary {
	out := make([]translationSummary, 0, len(list))
	for _, t := range list {
		out = append(out, translationSummary{
			ID:             t.Code,
			FullName:       t.FullName,
			ShortName:      t.ShortName,
			Language:       t.Language,
			License:        t.License,
			IsPublicDomain: t.IsPublicDomain,
			Source:         t.Source,
			Comment:        t.Comment,
		})
	}
	return out
}

func (a *App) ListTranslations(w http.ResponseWriter, r *http.Request) {
	list := a.Catalog.List(r.URL.Query().Get("publicDomainOnly") == "true")
	public := 0
	for _, t := range list {
		if t.IsPublicDomain {
			public++
		}
	}
	a.ok(w, map[string]any{
		"translations":      summarize(list),
		"totalCount":        len(list),
		"publicDomainCount": public,
	})
}

func (a *App) GetTranslation(w http.ResponseWriter, r *http.Request) {
	t, err := a.Catalog.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	books := catalog.BooksFor(t)
	a.ok(w, map[string]any{
		"translation":   t,
		"totalChapters": catalog.TotalChapters(books),
	})
}

func (a *App) TranslationsByLanguage(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	list := a.Catalog.ByLanguage(lang)
	a.ok(w, map[string]any{
		"language":     strings.ToUpper(lang),
		"translations": summarize(list),
		"count":        len(list),
	})
}

func (a *App) PublicDomainTranslations(w http.ResponseWriter, r *http.Request) {
	list := a.Catalog.List(true)
	a.ok(w, map[string]any{"translations": summarize(list), "count": len(list)})
}

// LegalDisclaimer serves the notice in the requested language, falling back
// to the locale negotiated by the I18N middleware.
func (a *App) LegalDisclaimer(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	switch q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("language"))); q {
	case "":
	case "english":
		locale = "en"
	case "dutch":
		locale = "nl"
	default:
		locale = q
	}
	a.ok(w, map[string]any{
		"disclaimer": a.Catalog.Disclaimer(locale),
		"language":   locale,
	})
}

func (a *App) TranslationLanguages(w http.ResponseWriter, r *http.Request) {
	langs := a.Catalog.Languages()
	a.ok(w, map[string]any{"languages": langs, "totalLanguages": len(langs)})
}
