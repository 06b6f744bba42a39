package catalog

import "bibledownloader/internal/domain"

type bookDef struct {
	code     string
	name     string
	dutch    string
	chapters int
}

// Joel and Malachi are numbered differently across editions; their counts
// come from the translation flags.
const (
	codeJoel    = "JOL"
	codeMalachi = "MAL"
)

var bookDefs = [...]bookDef{
	{code: "GEN", name: "Genesis", dutch: "Genesis", chapters: 50},
	{code: "EXO", name: "Exodus", dutch: "Exodus", chapters: 40},
	{code: "LEV", name: "Leviticus", dutch: "Leviticus", chapters: 27},
	{code: "NUM", name: "Numbers", dutch: "Numeri", chapters: 36},
	{code: "DEU", name: "Deuteronomy", dutch: "Deuteronomium", chapters: 34},
	{code: "JOS", name: "Joshua", dutch: "Jozua", chapters: 24},
	{code: "JDG", name: "Judges", dutch: "Rechters", chapters: 21},
	{code: "RUT", name: "Ruth", dutch: "Ruth", chapters: 4},
	{code: "1SA", name: "1 Samuel", dutch: "1 Samuel", chapters: 31},
	{code: "2SA", name: "2 Samuel", dutch: "2 Samuel", chapters: 24},
	{code: "1KI", name: "1 Kings", dutch: "1 Koningen", chapters: 22},
	{code: "2KI", name: "2 Kings", dutch: "2 Koningen", chapters: 25},
	{code: "1CH", name: "1 Chronicles", dutch: "1 Kronieken", chapters: 29},
	{code: "2CH", name: "2 Chronicles", dutch: "2 Kronieken", chapters: 36},
	{code: "EZR", name: "Ezra", dutch: "Ezra", chapters: 10},
	{code: "NEH", name: "Nehemiah", dutch: "Nehemia", chapters: 13},
	{code: "EST", name: "Esther", dutch: "Esther", chapters: 10},
	{code: "JOB", name: "Job", dutch: "Job", chapters: 42},
	{code: "PSA", name: "Psalms", dutch: "Psalmen", chapters: 150},
	{code: "PRO", name: "Proverbs", dutch: "Spreuken", chapters: 31},
	{code: "ECC", name: "Ecclesiastes", dutch: "Prediker", chapters: 12},
	{code: "SNG", name: "Song of Songs", dutch: "Hooglied", chapters: 8},
	{code: "ISA", name: "Isaiah", dutch: "Jesaja", chapters: 66},
	{code: "JER", name: "Jeremiah", dutch: "Jeremia", chapters: 52},
	{code: "LAM", name: "Lamentations", dutch: "Klaagliederen", chapters: 5},
	{code: "EZK", name: "Ezekiel", dutch: "Ezechiel", chapters: 48},
	{code: "DAN", name: "Daniel", dutch: "Daniel", chapters: 12},
	{code: "HOS", name: "Hosea", dutch: "Hosea", chapters: 14},
	{code: "JOL", name: "Joel", dutch: "Joel", chapters: 0},
	{code: "AMO", name: "Amos", dutch: "Amos", chapters: 9},
	{code: "OBA", name: "Obadiah", dutch: "Obadja", chapters: 1},
	{code: "JON", name: "Jonah", dutch: "Jona", chapters: 4},
	{code: "MIC", name: "Micah", dutch: "Micha", chapters: 7},
	{code: "NAM", name: "Nahum", dutch: "Nahum", chapters: 3},
	{code: "HAB", name: "Habakkuk", dutch: "Habakuk", chapters: 3},
	{code: "ZEP", name: "Zephaniah", dutch: "Sefanja", chapters: 3},
	{code: "HAG", name: "Haggai", dutch: "Haggai", chapters: 2},
	{code: "ZEC", name: "Zechariah", dutch: "Zacharia", chapters: 14},
	{code: "MAL", name: "Malachi", dutch: "Maleachi", chapters: 0},
	{code: "MAT", name: "Matthew", dutch: "Matteus", chapters: 28},
	{code: "MRK", name: "Mark", dutch: "Markus", chapters: 16},
	{code: "LUK", name: "Luke", dutch: "Lukas", chapters: 24},
	{code: "JHN", name: "John", dutch: "Johannes", chapters: 21},
	{code: "ACT", name: "Acts", dutch: "Handelingen", chapters: 28},
	{code: "ROM", name: "Romans", dutch: "Romeinen", chapters: 16},
	{code: "1CO", name: "1 Corinthians", dutch: "1 Korinthiers", chapters: 16},
	{code: "2CO", name: "2 Corinthians", dutch: "2 Korinthiers", chapters: 13},
	{code: "GAL", name: "Galatians", dutch: "Galaten", chapters: 6},
	{code: "EPH", name: "Ephesians", dutch: "Efeziers", chapters: 6},
	{code: "PHP", name: "Philippians", dutch: "Filippenzen", chapters: 4},
	{code: "COL", name: "Colossians", dutch: "Kolossenzen", chapters: 4},
	{code: "1TH", name: "1 Thessalonians", dutch: "1 Thessalonicenzen", chapters: 5},
	{code: "2TH", name: "2 Thessalonians", dutch: "2 Thessalonicenzen", chapters: 3},
	{code: "1TI", name: "1 Timothy", dutch: "1 Timoteus", chapters: 6},
	{code: "2TI", name: "2 Timothy", dutch: "2 Timoteus", chapters: 4},
	{code: "TIT", name: "Titus", dutch: "Titus", chapters: 3},
	{code: "PHM", name: "Philemon", dutch: "Filemon", chapters: 1},
	{code: "HEB", name: "Hebrews", dutch: "Hebreeen", chapters: 13},
	{code: "JAS", name: "James", dutch: "Jakobus", chapters: 5},
	{code: "1PE", name: "1 Peter", dutch: "1 Petrus", chapters: 5},
	{code: "2PE", name: "2 Peter", dutch: "2 Petrus", chapters: 3},
	{code: "1JN", name: "1 John", dutch: "1 Johannes", chapters: 5},
	{code: "2JN", name: "2 John", dutch: "2 Johannes", chapters: 1},
	{code: "3JN", name: "3 John", dutch: "3 Johannes", chapters: 1},
	{code: "JUD", name: "Jude", dutch: "Judas", chapters: 1},
	{code: "REV", name: "Revelation", dutch: "Openbaring", chapters: 22},
}

// Books returns the 66 books in canonical order with chapter counts adjusted
// for the given edition flags.
func Books(joel3, mal4 bool) []domain.Book {
	out := make([]domain.Book, 0, len(bookDefs))
	for i, def := range bookDefs {
		chapters := def.chapters
		switch def.code {
		case codeJoel:
			chapters = 4
			if joel3 {
				chapters = 3
			}
		case codeMalachi:
			chapters = 3
			if mal4 {
				chapters = 4
			}
		}
		out = append(out, domain.Book{
			Index:     i + 1,
			Code:      def.code,
			Name:      def.name,
			DutchName: def.dutch,
			Chapters:  chapters,
		})
	}
	return out
}

// BooksFor returns the book list for a translation's edition.
func BooksFor(t domain.Translation) []domain.Book {
	return Books(t.Joel3Bible, t.Mal4Bible)
}

// TotalChapters sums the chapter counts of books.
func TotalChapters(books []domain.Book) int {
	total := 0
	for _, b := range books {
		total += b.Chapters
	}
	return total
}
