package markdown

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Slugger generates GitHub-style heading anchors. Repeated headings get a
// numeric suffix ("setup", "setup-1", "setup-2"). A Slugger is not safe for
// concurrent use.
type Slugger struct {
	lower cases.Caser
	seen  map[string]int
}

func NewSlugger() *Slugger {
	return &Slugger{lower: cases.Lower(language.Und), seen: make(map[string]int)}
}

// Slug returns the anchor for value and records it as used.
func (s *Slugger) Slug(value string) string {
	base := Slugify(s.lower, value)
	slug := base
	if n, ok := s.seen[base]; ok {
		for {
			n++
			slug = base + "-" + strconv.Itoa(n)
			if _, taken := s.seen[slug]; !taken {
				break
			}
		}
		s.seen[base] = n
	}
	s.seen[slug] = 0
	return slug
}

// Slugify lower-cases value, drops punctuation and symbols, and turns each
// space into a hyphen. Letters, numbers, marks, '-' and '_' are kept.
func Slugify(lower cases.Caser, value string) string {
	var b strings.Builder
	for _, r := range lower.String(strings.TrimSpace(value)) {
		switch {
		case r == ' ':
			b.WriteByte('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
