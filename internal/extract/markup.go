package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bibledownloader/internal/domain"
)

// strategy is one selector pass over a page. Strategies are tried in order
// and the first one with matches wins.
type strategy struct {
	selector string
	label    string
	content  string
}

var markupStrategies = []strategy{
	{selector: "span[data-usfm]", label: "[class*=label]", content: "[class*=content]"},
	{selector: ".verse, [data-verse]", label: ".verse-number, .v, sup", content: ".content"},
}

// Markup extracts verses from structured HTML chapter pages.
type Markup struct{}

func (Markup) Extract(payload []byte, book domain.Book, chapter int) ([]domain.ContentUnit, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	for _, st := range markupStrategies {
		matches := doc.Find(st.selector)
		if matches.Length() == 0 {
			continue
		}
		c := newCollector(book, chapter)
		position := 0
		matches.Each(func(_ int, s *goquery.Selection) {
			if s.ParentsFiltered(st.selector).Length() > 0 {
				return
			}
			position++
			verse := resolveVerse(s, st, position)
			c.add(verse, resolveText(s, st))
		})
		return c.result(), nil
	}
	return nil, nil
}

// resolveVerse prefers the embedded usfm reference, then a visible label,
// then data-verse, then document position.
func resolveVerse(s *goquery.Selection, st strategy, position int) int {
	if usfm, ok := s.Attr("data-usfm"); ok {
		ref := strings.Split(usfm, "+")[0]
		parts := strings.Split(ref, ".")
		if n, ok := verseNumber(parts[len(parts)-1]); ok {
			return n
		}
	}
	if n, ok := verseNumber(s.Find(st.label).First().Text()); ok {
		return n
	}
	if v, ok := s.Attr("data-verse"); ok {
		if n, ok := verseNumber(v); ok {
			return n
		}
	}
	return position
}

func resolveText(s *goquery.Selection, st strategy) string {
	if content := s.Find(st.content); content.Length() > 0 {
		parts := make([]string, 0, content.Length())
		content.Each(func(_ int, c *goquery.Selection) {
			if c.ParentsUntilSelection(s).Filter(st.content).Length() > 0 {
				return
			}
			parts = append(parts, c.Text())
		})
		return strings.Join(parts, " ")
	}
	clone := s.Clone()
	clone.Find(st.label).Remove()
	return stripLeadingNumber(clone.Text())
}
