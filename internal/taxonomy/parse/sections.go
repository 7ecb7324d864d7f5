package parse

import (
	"strings"
)

// DocumentSection is one top-level section chunk of the source document.
type DocumentSection struct {
	Name    string // heading up to the dash, e.g. "Section A"
	Content string // the section heading and everything until the next one
}

// SplitSections splits the taxonomy document into per-section chunks.
// Lines before the first section heading are dropped.
func SplitSections(text string) []DocumentSection {
	var (
		sections []DocumentSection
		name     string
		content  []string
	)

	flush := func() {
		if name == "" {
			return
		}
		sections = append(sections, DocumentSection{
			Name:    name,
			Content: strings.Join(content, "\n"),
		})
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if sectionRe.MatchString(line) {
			flush()
			name = sectionHeadingName(line)
			content = []string{line}
			continue
		}
		if name != "" {
			content = append(content, line)
		}
	}
	flush()
	return sections
}

// sectionHeadingName extracts "Section A" from "# Section A – Agriculture".
func sectionHeadingName(line string) string {
	for _, sep := range []string{"–", "—", "-"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			return strings.TrimSpace(strings.TrimLeft(line[:idx], "# "))
		}
	}
	return strings.TrimSpace(strings.TrimLeft(line, "# "))
}
