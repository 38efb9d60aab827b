package markdown

// Kind enumerates the closed set of top-level content blocks navindex understands.
type Kind int

const (
	KindParagraph Kind = iota
	KindHeading
	KindCode
	KindDiagram // fenced code whose language is a diagram dialect (mermaid)
	KindList
	KindQuote
	KindTable
	KindHTML
	KindThematicBreak
)

var kindNames = [...]string{
	KindParagraph:     "paragraph",
	KindHeading:       "heading",
	KindCode:          "code",
	KindDiagram:       "diagram",
	KindList:          "list",
	KindQuote:         "quote",
	KindTable:         "table",
	KindHTML:          "html",
	KindThematicBreak: "thematic_break",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Block is one top-level block of a Markdown body.
//
// Level is set for headings (1-6), Language for code and diagrams. Text holds
// the plain text of headings, paragraphs and quotes, and the raw lines of code.
type Block struct {
	Kind     Kind
	Level    int
	Language string
	Text     string
}

var diagramLanguages = map[string]struct{}{
	"mermaid": {},
}
