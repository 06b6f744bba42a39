package extract

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"bibledownloader/internal/domain"
)

const (
	genericSelector  = "p, div, span"
	genericMinLength = 10
)

var (
	numberedLine  = regexp.MustCompile(`^\s*\d+\s`)
	numberedSplit = regexp.MustCompile(`(?s)^(\d+)\s+(.*)$`)
)

// Generic finds containers whose text starts with a verse number.
type Generic struct{}

func (Generic) Extract(payload []byte, book domain.Book, chapter int) ([]domain.ContentUnit, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	matches := doc.Find(genericSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		return numberedLine.MatchString(text) && len(text) > genericMinLength
	})
	c := newCollector(book, chapter)
	matches.Each(func(_ int, s *goquery.Selection) {
		// an enclosing container repeats its children's verses
		if s.Find(genericSelector).FilterSelection(matches).Length() > 0 {
			return
		}
		m := numberedSplit.FindStringSubmatch(cleanText(s.Text()))
		if m == nil {
			return
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return
		}
		c.add(n, m[2])
	})
	return c.result(), nil
}
