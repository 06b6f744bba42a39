// Package assemble builds the final artifacts of a job from extracted verses.
package assemble

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"bibledownloader/internal/domain"
)

const (
	Separator        = "~~~~"
	PlaceholderText  = "%empty%"
	placeholderVerse = 1
)

// ChapterLoader returns the verses of one chapter. Any error, including a
// missing payload, turns the chapter into a placeholder.
type ChapterLoader func(ctx context.Context, book domain.Book, chapter int) ([]domain.ContentUnit, error)

// Problem describes one chapter that produced a placeholder.
type Problem struct {
	Book    domain.Book
	Chapter int
	Err     error
}

// Options selects the artifacts to build and optional observers.
type Options struct {
	Text       bool
	Structured bool
	OnBook     func(book domain.Book)
	OnProblem  func(Problem)
}

// BookFile is one per-book structured artifact.
type BookFile struct {
	Code string
	Data []byte
}

// Output carries the serialized artifacts.
type Output struct {
	Text         []byte
	Books        []BookFile
	Index        []byte
	Placeholders int
}

type textHeader struct {
	LongName  string `json:"long name"`
	ShortName string `json:"short name"`
	SheetName string `json:"sheet name"`
	License   string `json:"license"`
	Comment   string `json:"comment"`
	Language  string `json:"language"`
}

// Assemble walks books in catalogue order, loading every chapter once.
// Output is deterministic for identical loader results.
func Assemble(ctx context.Context, t domain.Translation, books []domain.Book, load ChapterLoader, opts Options) (*Output, error) {
	out := &Output{}
	var lines []string
	if opts.Text {
		header, err := encodeJSON(textHeader{
			LongName:  t.FullName,
			ShortName: t.ShortName,
			SheetName: t.SheetName,
			License:   t.License,
			Comment:   t.Comment,
			Language:  t.Language,
		})
		if err != nil {
			return nil, fmt.Errorf("assemble: header: %w", err)
		}
		lines = append(lines, string(header), Separator)
	}
	index := Index{Translation: t.Code, Source: t.Source, Books: []IndexEntry{}}

	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.OnBook != nil {
			opts.OnBook(book)
		}
		doc := BookDocument{Source: t.Source, Translation: t.FullName, Book: book.Name, Code: book.Code}
		for ch := 1; ch <= book.Chapters; ch++ {
			units, err := load(ctx, book, ch)
			if err != nil || len(units) == 0 {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				out.Placeholders++
				if opts.OnProblem != nil {
					opts.OnProblem(Problem{Book: book, Chapter: ch, Err: err})
				}
				if opts.Text {
					lines = append(lines, formatLine(book.Index, ch, placeholderVerse, PlaceholderText))
				}
				continue
			}
			if opts.Text {
				for _, u := range units {
					lines = append(lines, formatLine(book.Index, ch, u.Verse, u.Text))
				}
			}
			if opts.Structured {
				doc.Chapters = append(doc.Chapters, ChapterVerses{Chapter: ch, Verses: units})
			}
		}
		if opts.Structured && len(doc.Chapters) > 0 {
			data, err := encodeJSON(doc)
			if err != nil {
				return nil, fmt.Errorf("assemble: %s: %w", book.Code, err)
			}
			out.Books = append(out.Books, BookFile{Code: book.Code, Data: data})
			index.Books = append(index.Books, IndexEntry{Code: book.Code, Name: book.Name, Chapters: book.Chapters, Source: t.Source})
		}
	}

	if opts.Text {
		out.Text = []byte(strings.Join(lines, "\n"))
	}
	if opts.Structured {
		data, err := encodeJSON(index)
		if err != nil {
			return nil, fmt.Errorf("assemble: index: %w", err)
		}
		out.Index = data
	}
	return out, nil
}

// formatLine renders "{BBCCCVVV} {text}".
func formatLine(book, chapter, verse int, text string) string {
	return fmt.Sprintf("{%02d%03d%03d} {%s}", book, chapter, verse, text)
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ChapterVerses is one chapter of a structured book artifact.
type ChapterVerses struct {
	Chapter int
	Verses  []domain.ContentUnit
}

// Chapters marshals as a JSON object keyed by chapter number in ascending
// order.
type Chapters []ChapterVerses

func (c Chapters) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ch := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(ch.Chapter)))
		buf.WriteByte(':')
		verses := ch.Verses
		if verses == nil {
			verses = []domain.ContentUnit{}
		}
		data, err := encodeCompact(verses)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// BookDocument is the structured artifact of one book.
type BookDocument struct {
	Source      string   `json:"source"`
	Translation string   `json:"translation"`
	Book        string   `json:"book"`
	Code        string   `json:"code"`
	Chapters    Chapters `json:"chapters"`
}

// IndexEntry lists one book with structured output.
type IndexEntry struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Chapters int    `json:"chapters"`
	Source   string `json:"source"`
}

// Index summarizes every produced book.
type Index struct {
	Translation string       `json:"translation"`
	Source      string       `json:"source"`
	Books       []IndexEntry `json:"books"`
}
