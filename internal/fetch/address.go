package fetch

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"bibledownloader/internal/domain"
)

// AddressBuilder resolves the template placeholders of one source.
type AddressBuilder func(t domain.Translation, b domain.Book, chapter int) (map[string]string, error)

var builders = map[string]AddressBuilder{
	"bible.com":      bibleComValues,
	"basisbijbel.nl": basisBijbelValues,
	"debijbel.nl":    deBijbelValues,
}

// KnownSource reports whether an address builder exists for name.
func KnownSource(name string) bool {
	_, ok := builders[name]
	return ok
}

// BuildURL renders the chapter address for src. Unknown sources and
// translations lacking a required identifier yield a configuration error.
func BuildURL(src domain.Source, t domain.Translation, b domain.Book, chapter int) (string, error) {
	build, ok := builders[src.Name]
	if !ok {
		return "", ConfigurationError("unknown source: %s", src.Name)
	}
	if strings.TrimSpace(src.BaseURL) == "" || strings.TrimSpace(src.Template) == "" {
		return "", ConfigurationError("source %s has no address template", src.Name)
	}
	values, err := build(t, b, chapter)
	if err != nil {
		return "", err
	}
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.TrimRight(src.BaseURL, "/") + strings.NewReplacer(pairs...).Replace(src.Template), nil
}

func bibleComValues(t domain.Translation, b domain.Book, chapter int) (map[string]string, error) {
	if t.BibleComID <= 0 {
		return nil, ConfigurationError("missing bible.com ID for %s", t.Code)
	}
	return map[string]string{
		"id":      strconv.Itoa(t.BibleComID),
		"book":    b.Code,
		"chapter": strconv.Itoa(chapter),
	}, nil
}

func basisBijbelValues(_ domain.Translation, b domain.Book, chapter int) (map[string]string, error) {
	return map[string]string{
		"book":    url.PathEscape(strings.ToLower(b.Name)),
		"chapter": strconv.Itoa(chapter),
	}, nil
}

var nonLetters = regexp.MustCompile(`[^a-z]`)

func deBijbelValues(t domain.Translation, b domain.Book, chapter int) (map[string]string, error) {
	version := nonLetters.ReplaceAllString(strings.ToLower(t.ShortName), "")
	if version == "" {
		return nil, ConfigurationError("translation %s has no usable debijbel.nl version", t.Code)
	}
	return map[string]string{
		"book":    b.Code,
		"chapter": strconv.Itoa(chapter),
		"version": url.QueryEscape(version),
	}, nil
}
