// Package extract turns raw chapter payloads into ordered verses. Each
// source registers the variant that understands its payloads.
package extract

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"bibledownloader/internal/domain"
	"bibledownloader/internal/fetch"
)

// Extractor parses one payload. An error or an empty result means the
// chapter gets a placeholder.
type Extractor interface {
	Extract(payload []byte, book domain.Book, chapter int) ([]domain.ContentUnit, error)
}

var registry = map[string]Extractor{
	"bible.com":      Markup{},
	"basisbijbel.nl": Generic{},
	"debijbel.nl":    Structured{Fallback: Generic{}},
}

// For returns the extractor registered for source, Generic otherwise.
func For(source string) Extractor {
	if ex, ok := registry[source]; ok {
		return ex
	}
	return Generic{}
}

// Chapter runs ex and converts empty results and panics from malformed
// markup into extraction errors.
func Chapter(ex Extractor, payload []byte, book domain.Book, chapter int) (units []domain.ContentUnit, err error) {
	defer func() {
		if r := recover(); r != nil {
			units = nil
			err = fetch.ExtractionError(errors.New("malformed payload"))
		}
	}()
	units, err = ex.Extract(payload, book, chapter)
	if err != nil {
		var fe *fetch.Error
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, fetch.ExtractionError(err)
	}
	if len(units) == 0 {
		return nil, fetch.ExtractionError(errors.New("no verses found"))
	}
	return units, nil
}

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	leadingNumber = regexp.MustCompile(`^\d+\s*`)
)

// cleanText collapses whitespace and normalizes to NFC.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(spaceRun.ReplaceAllString(s, " ")))
}

func stripLeadingNumber(s string) string {
	return leadingNumber.ReplaceAllString(strings.TrimSpace(s), "")
}

// verseNumber parses the leading integer of s ("3", "3-4", "GEN.1.3").
func verseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// collector merges fragments that share a verse number, keeping first-seen
// order for the stable sort.
type collector struct {
	book, chapter int
	index         map[int]int
	units         []domain.ContentUnit
}

func newCollector(book domain.Book, chapter int) *collector {
	return &collector{book: book.Index, chapter: chapter, index: make(map[int]int)}
}

func (c *collector) add(verse int, text string) {
	text = cleanText(text)
	if text == "" || verse <= 0 {
		return
	}
	if i, ok := c.index[verse]; ok {
		c.units[i].Text += " " + text
		return
	}
	c.index[verse] = len(c.units)
	c.units = append(c.units, domain.ContentUnit{Book: c.book, Chapter: c.chapter, Verse: verse, Text: text})
}

func (c *collector) result() []domain.ContentUnit {
	sort.SliceStable(c.units, func(i, j int) bool { return c.units[i].Verse < c.units[j].Verse })
	return c.units
}
