package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"bibledownloader/internal/domain"
)

type passage struct {
	Content struct {
		Verses []struct {
			Verse flexInt `json:"verse"`
			Text  string  `json:"text"`
		} `json:"verses"`
	} `json:"content"`
}

// flexInt accepts both 3 and "3".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, _ := verseNumber(s)
	*f = flexInt(n)
	return nil
}

// Structured reads JSON passage payloads. Non-JSON bodies go to Fallback
// when one is set.
type Structured struct {
	Fallback Extractor
}

func (x Structured) Extract(payload []byte, book domain.Book, chapter int) ([]domain.ContentUnit, error) {
	var p passage
	if err := json.Unmarshal(payload, &p); err != nil {
		if x.Fallback != nil {
			return x.Fallback.Extract(payload, book, chapter)
		}
		return nil, err
	}
	c := newCollector(book, chapter)
	for _, v := range p.Content.Verses {
		c.add(int(v.Verse), v.Text)
	}
	return c.result(), nil
}
