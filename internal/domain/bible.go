package domain

// Book is one of the 66 top-level documents of a translation. Chapters
// already reflects the owning translation's edition flags.
type Book struct {
	Index     int    `json:"index"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	DutchName string `json:"dutchName,omitempty"`
	Chapters  int    `json:"chapters"`
}

// PayloadKind describes the body format a source answers with.
type PayloadKind string

const (
	PayloadHTML PayloadKind = "html"
	PayloadJSON PayloadKind = "json"
)

// Ext returns the raw payload file extension for the kind.
func (k PayloadKind) Ext() string {
	if k == PayloadJSON {
		return ".json"
	}
	return ".html"
}

// Source describes one external origin of chapter payloads.
type Source struct {
	Name     string      `json:"name" yaml:"name"`
	BaseURL  string      `json:"baseUrl" yaml:"baseUrl"`
	Template string      `json:"template" yaml:"template"`
	Payload  PayloadKind `json:"payload" yaml:"payload"`
}

// Translation is one configured text edition.
type Translation struct {
	Code           string `json:"id" yaml:"-"`
	FullName       string `json:"fullName" yaml:"fullName"`
	ShortName      string `json:"shortName" yaml:"shortName"`
	SheetName      string `json:"sheetName" yaml:"sheetName"`
	Language       string `json:"language" yaml:"language"`
	LanguageName   string `json:"languageName" yaml:"languageName"`
	License        string `json:"license" yaml:"license"`
	IsPublicDomain bool   `json:"isPublicDomain" yaml:"isPublicDomain"`
	Source         string `json:"source" yaml:"source"`
	BibleComID     int    `json:"bibleComId,omitempty" yaml:"bibleComId"`
	Joel3Bible     bool   `json:"joel3Bible" yaml:"joel3Bible"`
	Mal4Bible      bool   `json:"mal4Bible" yaml:"mal4Bible"`
	Comment        string `json:"comment" yaml:"comment"`
}

// ContentUnit is one extracted verse.
type ContentUnit struct {
	Book    int    `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

// Resource addresses one chapter of one book.
type Resource struct {
	Book    Book
	Chapter int
}

// Resources expands books into chapters in catalogue order.
func Resources(books []Book) []Resource {
	var out []Resource
	for _, b := range books {
		for ch := 1; ch <= b.Chapters; ch++ {
			out = append(out, Resource{Book: b, Chapter: ch})
		}
	}
	return out
}
