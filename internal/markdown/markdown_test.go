package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "# Introducing Jotai\n" +
	"\n" +
	"Jotai takes an atomic approach to state.\n" +
	"\n" +
	"## Getting Started\n" +
	"\n" +
	"- install\n" +
	"- import\n" +
	"\n" +
	"```mermaid\n" +
	"graph TD; A-->B\n" +
	"```\n" +
	"\n" +
	"```js\n" +
	"const a = atom(0)\n" +
	"```\n" +
	"\n" +
	"### Async Default Values\n" +
	"\n" +
	"> quoted\n" +
	"\n" +
	"| a | b |\n" +
	"|---|---|\n" +
	"| 1 | 2 |\n" +
	"\n" +
	"---\n" +
	"\n" +
	"##### Too Deep\n"

func TestParse_ClassifiesBlocks(t *testing.T) {
	doc := Parse([]byte(sample))

	kinds := make([]Kind, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		kinds = append(kinds, b.Kind)
	}
	require.Equal(t, []Kind{
		KindHeading, KindParagraph, KindHeading, KindList, KindDiagram, KindCode,
		KindHeading, KindQuote, KindTable, KindThematicBreak, KindHeading,
	}, kinds)

	assert.Equal(t, "mermaid", doc.Blocks[4].Language)
	assert.Equal(t, "js", doc.Blocks[5].Language)
	assert.Equal(t, "const a = atom(0)\n", doc.Blocks[5].Text)
	assert.Equal(t, "diagram", KindDiagram.String())
}

func TestDocument_TitleAndSummary(t *testing.T) {
	doc := Parse([]byte(sample))
	assert.Equal(t, "Introducing Jotai", doc.Title())
	assert.Equal(t, "Jotai takes an atomic approach to state.", doc.Summary())

	empty := Parse([]byte("## Only a section\n"))
	assert.Empty(t, empty.Title())
	assert.Empty(t, empty.Summary())
}

func TestDocument_TOC(t *testing.T) {
	doc := Parse([]byte(sample))

	toc := doc.TOC(2, 4)
	require.Equal(t, []Heading{
		{Value: "Getting Started", ID: "getting-started", Level: 2},
		{Value: "Async Default Values", ID: "async-default-values", Level: 3},
	}, toc)

	assert.Len(t, doc.TOC(1, 6), 4)
}

func TestSlugger(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"React / Next.js Introduction", "react--nextjs-introduction"},
		{"Reading / Writing State", "reading--writing-state"},
		{"Handling Events & Rendering Data", "handling-events--rendering-data"},
		{"How can you get started?", "how-can-you-get-started"},
		{"snake_case stays", "snake_case-stays"},
		{"Überblick", "überblick"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSlugger().Slug(tt.in))
		})
	}
}

func TestSlugger_Duplicates(t *testing.T) {
	s := NewSlugger()
	assert.Equal(t, "example", s.Slug("Example"))
	assert.Equal(t, "example-1", s.Slug("Example"))
	assert.Equal(t, "example-2", s.Slug("example"))
}

func TestExtractLinks(t *testing.T) {
	src := "See [welcome](../Introduction/welcome.md#top), [site](https://example.com) " +
		"and ![img](pic.png).\n\n[ref]: ./other.mdx\n"
	doc := Parse([]byte(src))

	var targets []string
	for _, l := range doc.Links {
		if target, ok := l.DocumentTarget(); ok {
			targets = append(targets, target)
		}
	}
	assert.Equal(t, []string{"../Introduction/welcome.md", "./other.mdx"}, targets)
}

func TestExtractLinks_HTML(t *testing.T) {
	src := "See <a href=\"setup.md\">setup</a> and <img src=\"x.md\">.\n" +
		"\n" +
		"<div>\n" +
		"<a class=\"card\" href=\"../api.mdx#auth\">API</a>\n" +
		"</div>\n"
	doc := Parse([]byte(src))

	var html []Link
	for _, l := range doc.Links {
		if l.Kind == LinkKindHTML {
			html = append(html, l)
		}
	}
	require.Len(t, html, 2)
	assert.Equal(t, "setup.md", html[0].Destination)
	target, ok := html[1].DocumentTarget()
	assert.True(t, ok)
	assert.Equal(t, "../api.mdx", target)
}

func TestLink_DocumentTarget(t *testing.T) {
	tests := []struct {
		link Link
		want string
		ok   bool
	}{
		{Link{Kind: LinkKindInline, Destination: "api.md"}, "api.md", true},
		{Link{Kind: LinkKindInline, Destination: "api%20guide.md?x=1"}, "api guide.md", true},
		{Link{Kind: LinkKindInline, Destination: "#section"}, "", false},
		{Link{Kind: LinkKindInline, Destination: "/abs/doc.md"}, "", false},
		{Link{Kind: LinkKindInline, Destination: "https://x.org/a.md"}, "", false},
		{Link{Kind: LinkKindImage, Destination: "img.md"}, "", false},
		{Link{Kind: LinkKindInline, Destination: "page.html"}, "", false},
	}
	for _, tt := range tests {
		got, ok := tt.link.DocumentTarget()
		assert.Equal(t, tt.ok, ok, tt.link.Destination)
		assert.Equal(t, tt.want, got, tt.link.Destination)
	}
}
