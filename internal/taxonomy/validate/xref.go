package validate

import (
	"regexp"
	"strings"

	"github.com/emotu/nacex/internal/taxonomy"
)

// Cross-reference forms found in exclusion prose:
//
//	"growing of rice, see 01.12"
//	"see group 10.3"
//	"see division 02"
//	"see section F"
var (
	classRefRe    = regexp.MustCompile(`\b(\d{2}\.\d{2})\b`)
	groupRefRe    = regexp.MustCompile(`\b(\d{2}\.\d)\b`)
	divisionRefRe = regexp.MustCompile(`\bdivisions?\s+(\d{2})\b`)
	sectionRefRe  = regexp.MustCompile(`\bsections?\s+([A-U])\b`)
)

// ExtractRefs finds classification codes referenced in free text.
// Group codes that are prefixes of an extracted class code are dropped so
// "see 01.12" yields only the class, not a phantom "01.1" group reference.
func ExtractRefs(text string) []taxonomy.Code {
	var refs []taxonomy.Code
	seen := make(map[taxonomy.Code]bool)
	add := func(c taxonomy.Code) {
		if !seen[c] {
			seen[c] = true
			refs = append(refs, c)
		}
	}

	classes := classRefRe.FindAllString(text, -1)
	for _, m := range classes {
		add(taxonomy.Code(m))
	}

	for _, m := range groupRefRe.FindAllString(text, -1) {
		covered := false
		for _, cl := range classes {
			if strings.HasPrefix(cl, m) {
				covered = true
				break
			}
		}
		if !covered {
			add(taxonomy.Code(m))
		}
	}

	for _, m := range divisionRefRe.FindAllStringSubmatch(text, -1) {
		add(taxonomy.Code(m[1]))
	}
	for _, m := range sectionRefRe.FindAllStringSubmatch(text, -1) {
		add(taxonomy.Code(m[1]))
	}
	return refs
}

// ResolveRefs populates Activity.Refs on every class in the hierarchy from
// the activity text. Refs are extracted for both includes and excludes;
// exclusion cross-references are by far the more common case.
func ResolveRefs(h *taxonomy.Hierarchy) {
	for _, cl := range h.Classes() {
		for i := range cl.Includes {
			cl.Includes[i].Refs = ExtractRefs(cl.Includes[i].Text)
		}
		for i := range cl.Excludes {
			cl.Excludes[i].Refs = ExtractRefs(cl.Excludes[i].Text)
		}
	}
}
