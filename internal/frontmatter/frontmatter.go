// Package frontmatter splits YAML front matter from Markdown documents and
// decodes the fields navindex reads from it.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document opens a front matter
// block with "---" but never closes it.
var ErrMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

const delimiter = "---"

// Parts is a document split at its front matter boundary.
type Parts struct {
	// Raw is the YAML between the delimiters, without them.
	Raw  []byte
	Body []byte
	// Had reports whether the document carried a front matter block at all.
	Had     bool
	Newline string
}

// Split separates "---" delimited YAML front matter from the Markdown body.
// Documents without a leading delimiter come back with Had false and the
// whole input as Body. Both LF and CRLF line endings are accepted.
func Split(content []byte) (Parts, error) {
	nl := detectNewline(content)
	p := Parts{Body: content, Newline: nl}

	open := []byte(delimiter + nl)
	if !bytes.HasPrefix(content, open) {
		return p, nil
	}
	rest := content[len(open):]

	// Empty block: the closing delimiter follows immediately.
	if bytes.HasPrefix(rest, open) {
		return Parts{Raw: []byte{}, Body: rest[len(open):], Had: true, Newline: nl}, nil
	}

	closing := []byte(nl + delimiter + nl)
	end := bytes.Index(rest, closing)
	if end < 0 {
		// A closing delimiter on the last line without a trailing newline.
		if bytes.HasSuffix(rest, []byte(nl+delimiter)) {
			return Parts{Raw: rest[:len(rest)-len(delimiter)], Body: []byte{}, Had: true, Newline: nl}, nil
		}
		return Parts{}, ErrMissingClosingDelimiter
	}
	return Parts{
		Raw:     rest[:end+len(nl)],
		Body:    rest[end+len(closing):],
		Had:     true,
		Newline: nl,
	}, nil
}

// Join reassembles a document from raw front matter and body using nl as the
// line ending. An empty raw block still emits both delimiters.
func Join(raw, body []byte, nl string) []byte {
	if nl == "" {
		nl = "\n"
	}
	out := make([]byte, 0, 2*(len(delimiter)+len(nl))+len(raw)+len(body))
	out = append(out, delimiter+nl...)
	out = append(out, raw...)
	out = append(out, delimiter+nl...)
	return append(out, body...)
}

// ParseYAML parses raw front matter into a generic map. Empty input yields an empty map.
func ParseYAML(raw []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fields, nil
	}
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Fields are the front matter keys that shape a document's place in the index.
type Fields struct {
	ID                  string `yaml:"id"`
	Title               string `yaml:"title"`
	Description         string `yaml:"description"`
	SidebarPosition     *int   `yaml:"sidebar_position"`
	Slug                string `yaml:"slug"`
	Draft               bool   `yaml:"draft"`
	HideTableOfContents bool   `yaml:"hide_table_of_contents"`
	TOCMinHeadingLevel  int    `yaml:"toc_min_heading_level"`
	TOCMaxHeadingLevel  int    `yaml:"toc_max_heading_level"`
}

// Decode reads the known fields from raw front matter. Unknown keys are ignored.
func Decode(raw []byte) (Fields, error) {
	var f Fields
	if len(bytes.TrimSpace(raw)) == 0 {
		return f, nil
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Fields{}, fmt.Errorf("decode front matter: %w", err)
	}
	return f, nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
