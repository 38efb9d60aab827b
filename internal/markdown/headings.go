package markdown

// Heading is one table-of-contents entry.
type Heading struct {
	Value string `json:"value" yaml:"value"`
	ID    string `json:"id" yaml:"id"`
	Level int    `json:"level" yaml:"level"`
}

// TOC returns the headings whose level lies within [minLevel, maxLevel],
// each with a unique anchor id. Anchors are assigned over all headings of the
// document so ids stay stable when the level range changes.
func (d *Document) TOC(minLevel, maxLevel int) []Heading {
	slugger := NewSlugger()
	toc := make([]Heading, 0)
	for _, b := range d.Blocks {
		if b.Kind != KindHeading {
			continue
		}
		id := slugger.Slug(b.Text)
		if b.Level < minLevel || b.Level > maxLevel {
			continue
		}
		toc = append(toc, Heading{Value: b.Text, ID: id, Level: b.Level})
	}
	return toc
}
