// Package catalog holds the static translation, source and book data the
// download pipeline works from.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"bibledownloader/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Disclaimer is the legal notice shown before copyrighted downloads.
type Disclaimer struct {
	Title   string   `json:"title" yaml:"title"`
	Content []string `json:"content" yaml:"content"`
}

// LanguageCount reports how many translations share a base language.
type LanguageCount struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type catalogFile struct {
	Sources      map[string]domain.Source `yaml:"sources"`
	Translations yaml.Node                `yaml:"translations"`
	Disclaimer   map[string]Disclaimer    `yaml:"disclaimer"`
}

// Catalog is an immutable lookup over translations and sources.
type Catalog struct {
	order        []string
	translations map[string]domain.Translation
	tags         map[string]language.Tag
	sources      map[string]domain.Source
	disclaimers  map[string]Disclaimer
}

var disclaimerMatcher = language.NewMatcher([]language.Tag{language.English, language.Dutch})

// Default returns the catalogue compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalogue file from path. An empty path yields Default.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalogue. Translation order follows the document.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	c := &Catalog{
		translations: make(map[string]domain.Translation),
		tags:         make(map[string]language.Tag),
		sources:      make(map[string]domain.Source, len(file.Sources)),
		disclaimers:  file.Disclaimer,
	}
	for name, src := range file.Sources {
		src.Name = name
		if src.Payload == "" {
			src.Payload = domain.PayloadHTML
		}
		c.sources[name] = src
	}
	if file.Translations.Kind != 0 && file.Translations.Kind != yaml.MappingNode {
		return nil, errors.New("catalog: translations must be a mapping")
	}
	content := file.Translations.Content
	for i := 0; i+1 < len(content); i += 2 {
		code := strings.TrimSpace(content[i].Value)
		var t domain.Translation
		if err := content[i+1].Decode(&t); err != nil {
			return nil, fmt.Errorf("catalog: translation %s: %w", code, err)
		}
		if code == "" || t.ShortName == "" {
			return nil, fmt.Errorf("catalog: translation %q needs a code and shortName", code)
		}
		if _, dup := c.translations[code]; dup {
			return nil, fmt.Errorf("catalog: duplicate translation %s", code)
		}
		tag, err := language.Parse(strings.ToLower(t.Language))
		if err != nil {
			return nil, fmt.Errorf("catalog: translation %s language %q: %w", code, t.Language, err)
		}
		t.Code = code
		if t.SheetName == "" {
			t.SheetName = t.ShortName
		}
		c.order = append(c.order, code)
		c.translations[code] = t
		c.tags[code] = tag
	}
	if len(c.order) == 0 {
		return nil, errors.New("catalog: no translations configured")
	}
	return c, nil
}

// Lookup resolves a translation by exact code, then case-insensitively.
func (c *Catalog) Lookup(code string) (domain.Translation, error) {
	code = strings.TrimSpace(code)
	if t, ok := c.translations[code]; ok {
		return t, nil
	}
	for _, k := range c.order {
		if strings.EqualFold(k, code) {
			return c.translations[k], nil
		}
	}
	return domain.Translation{}, fmt.Errorf("%w: %s", domain.ErrUnknownTranslation, code)
}

// Source returns the descriptor registered under name.
func (c *Catalog) Source(name string) (domain.Source, bool) {
	src, ok := c.sources[name]
	return src, ok
}

// List returns translations in catalogue order.
func (c *Catalog) List(publicDomainOnly bool) []domain.Translation {
	out := make([]domain.Translation, 0, len(c.order))
	for _, code := range c.order {
		t := c.translations[code]
		if publicDomainOnly && !t.IsPublicDomain {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ByLanguage returns translations whose base language matches lang
// ("nl", "NL", "nl-BE" all select Dutch editions).
func (c *Catalog) ByLanguage(lang string) []domain.Translation {
	want, err := language.Parse(strings.ToLower(strings.TrimSpace(lang)))
	if err != nil {
		return nil
	}
	wantBase, _ := want.Base()
	var out []domain.Translation
	for _, code := range c.order {
		base, _ := c.tags[code].Base()
		if base == wantBase {
			out = append(out, c.translations[code])
		}
	}
	return out
}

// Languages counts translations per base language, sorted by code.
func (c *Catalog) Languages() []LanguageCount {
	counts := make(map[string]*LanguageCount)
	for _, code := range c.order {
		base, _ := c.tags[code].Base()
		key := base.String()
		lc, ok := counts[key]
		if !ok {
			lc = &LanguageCount{Code: key, Name: c.translations[code].LanguageName}
			counts[key] = lc
		}
		lc.Count++
	}
	out := make([]LanguageCount, 0, len(counts))
	for _, lc := range counts {
		out = append(out, *lc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Disclaimer returns the legal notice closest to locale; English otherwise.
func (c *Catalog) Disclaimer(locale string) Disclaimer {
	key := "english"
	if tag, err := language.Parse(strings.TrimSpace(locale)); err == nil {
		if _, idx, conf := disclaimerMatcher.Match(tag); idx == 1 && conf != language.No {
			key = "dutch"
		}
	}
	if d, ok := c.disclaimers[key]; ok {
		return d
	}
	return c.disclaimers["english"]
}

// Disclaimers returns every configured notice keyed by language name.
func (c *Catalog) Disclaimers() map[string]Disclaimer {
	out := make(map[string]Disclaimer, len(c.disclaimers))
	for k, v := range c.disclaimers {
		out[k] = v
	}
	return out
}
