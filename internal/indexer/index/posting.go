package index

// Field names one indexed text field of a document.
type Field string

const (
	FieldTitle    Field = "title"
	FieldAbstract Field = "abstract_text"
	FieldQuery    Field = "query"
)

// Fields lists every indexed field in a fixed order. Scoring iterates fields
// in this order so floating-point sums are reproducible.
var Fields = []Field{FieldTitle, FieldAbstract, FieldQuery}

// ParseField maps a field name to a Field.
func ParseField(name string) (Field, bool) {
	switch Field(name) {
	case FieldTitle, FieldAbstract, FieldQuery:
		return Field(name), true
	case "abstract":
		return FieldAbstract, true
	}
	return "", false
}

type Posting struct {
	DocID     int   `json:"d"`
	Frequency int   `json:"f"`
	Positions []int `json:"p,omitempty"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

type TermEntry struct {
	Field    Field
	Term     string
	Postings PostingList
}
