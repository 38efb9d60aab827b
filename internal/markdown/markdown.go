package markdown

import (
	"bytes"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// Document is the analysed form of a Markdown body (front matter already removed).
type Document struct {
	Blocks []Block
	Links  []Link
}

// Parse parses body with GitHub flavoured extensions and classifies its top-level blocks.
func Parse(body []byte) *Document {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	ctx := parser.NewContext()
	root := md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	doc := &Document{}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if b, ok := classify(n, body); ok {
			doc.Blocks = append(doc.Blocks, b)
		}
	}
	doc.Links = collectLinks(root, ctx, body)
	return doc
}

func classify(n gmast.Node, src []byte) (Block, bool) {
	switch node := n.(type) {
	case *gmast.Heading:
		return Block{Kind: KindHeading, Level: node.Level, Text: plainText(node, src)}, true
	case *gmast.Paragraph, *gmast.TextBlock:
		return Block{Kind: KindParagraph, Text: plainText(node, src)}, true
	case *gmast.FencedCodeBlock:
		lang := strings.ToLower(string(node.Language(src)))
		kind := KindCode
		if _, ok := diagramLanguages[lang]; ok {
			kind = KindDiagram
		}
		return Block{Kind: kind, Language: lang, Text: rawLines(node, src)}, true
	case *gmast.CodeBlock:
		return Block{Kind: KindCode, Text: rawLines(node, src)}, true
	case *gmast.List:
		return Block{Kind: KindList, Text: plainText(node, src)}, true
	case *gmast.Blockquote:
		return Block{Kind: KindQuote, Text: plainText(node, src)}, true
	case *east.Table:
		return Block{Kind: KindTable}, true
	case *gmast.HTMLBlock:
		return Block{Kind: KindHTML, Text: rawLines(node, src)}, true
	case *gmast.ThematicBreak:
		return Block{Kind: KindThematicBreak}, true
	default:
		return Block{}, false
	}
}

// Title returns the text of the first level-1 heading, or "".
func (d *Document) Title() string {
	for _, b := range d.Blocks {
		if b.Kind == KindHeading && b.Level == 1 {
			return b.Text
		}
	}
	return ""
}

// Summary returns the text of the first paragraph, or "".
func (d *Document) Summary() string {
	for _, b := range d.Blocks {
		if b.Kind == KindParagraph && b.Text != "" {
			return b.Text
		}
	}
	return ""
}

// plainText concatenates the inline text below n. Block children are joined by a space.
func plainText(n gmast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(gmast.Node)
	walk = func(n gmast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *gmast.Text:
				buf.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteByte(' ')
				}
			case *gmast.String:
				buf.Write(t.Value)
			case *gmast.AutoLink:
				buf.Write(t.URL(src))
			default:
				if c.Type() == gmast.TypeBlock && buf.Len() > 0 {
					buf.WriteByte(' ')
				}
				walk(c)
			}
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func rawLines(n gmast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}

func collectLinks(root gmast.Node, ctx parser.Context, src []byte) []Link {
	links := make([]Link, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.AutoLink:
			links = append(links, Link{Kind: LinkKindAuto, Destination: string(node.URL(src))})
		case *gmast.Image:
			links = append(links, Link{Kind: LinkKindImage, Destination: string(node.Destination)})
		case *gmast.Link:
			links = append(links, Link{Kind: LinkKindInline, Destination: string(node.Destination)})
		case *gmast.HTMLBlock:
			links = appendHTMLLinks(links, []byte(rawLines(node, src)))
		case *gmast.RawHTML:
			var buf bytes.Buffer
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				buf.Write(seg.Value(src))
			}
			links = appendHTMLLinks(links, buf.Bytes())
		}
		return gmast.WalkContinue, nil
	})

	// Reference definitions live in the parse context, not in the AST.
	refs := ctx.References()
	sort.Slice(refs, func(i, j int) bool {
		return string(refs[i].Label()) < string(refs[j].Label())
	})
	for _, ref := range refs {
		links = append(links, Link{Kind: LinkKindReferenceDefinition, Destination: string(ref.Destination())})
	}
	return links
}

// appendHTMLLinks adds the href of every anchor in an HTML fragment. The
// fragment may be a lone start tag, as inline HTML is split per tag.
func appendHTMLLinks(links []Link, fragment []byte) []Link {
	z := html.NewTokenizer(bytes.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			name, more := z.TagName()
			if string(name) != "a" {
				continue
			}
			for more {
				var key, val []byte
				key, val, more = z.TagAttr()
				if string(key) == "href" {
					links = append(links, Link{Kind: LinkKindHTML, Destination: string(val)})
				}
			}
		}
	}
}
