package storage

import (
	"fmt"

	"bibledownloader/internal/domain"
)

// Top-level artifact directories.
const (
	DirRaw   = "raw"
	DirBible = "bible"
	DirJSON  = "json"
)

// RawDir is the payload directory of one translation.
func RawDir(translation string) string {
	return DirRaw + "/" + translation
}

// RawFileName names the payload of one chapter, e.g. GEN_001.html.
func RawFileName(book domain.Book, chapter int, kind domain.PayloadKind) string {
	return fmt.Sprintf("%s_%03d%s", book.Code, chapter, kind.Ext())
}

// RawKey is the store key of one chapter payload.
func RawKey(translation string, book domain.Book, chapter int, kind domain.PayloadKind) string {
	return RawDir(translation) + "/" + RawFileName(book, chapter, kind)
}

// BibleKey is the store key of the flat text artifact.
func BibleKey(shortName string) string {
	return DirBible + "/" + shortName + ".bible"
}

// JSONDir is the structured artifact directory of one translation.
func JSONDir(translation string) string {
	return DirJSON + "/" + translation
}

// JSONBookKey is the store key of one book's structured artifact.
func JSONBookKey(translation, bookCode string) string {
	return JSONDir(translation) + "/" + bookCode + ".json"
}

// JSONIndexKey is the store key of the structured index.
func JSONIndexKey(translation string) string {
	return JSONDir(translation) + "/index.json"
}
