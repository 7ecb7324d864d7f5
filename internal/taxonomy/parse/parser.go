// Package parse extracts classification records from the plain-text
// taxonomy document: a markdown file enumerating sections, divisions,
// groups and classes with descriptive prose and includes/excludes lists.
package parse

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/emotu/nacex/internal/taxonomy"
)

var (
	sectionRe  = regexp.MustCompile(`^#\s*Section\s+([A-Za-z])\s*[–—-]\s*(.+)$`)
	divisionRe = regexp.MustCompile(`^(?:#+\s*)?(\d{2})\s+(.+)$`)
	groupRe    = regexp.MustCompile(`^(?:#+\s*)?(\d{2}\.\d)\s+(.+)$`)
	classRe    = regexp.MustCompile(`^(?:#+\s*)?(\d{2}\.\d{2})\s+(.+)$`)
)

const (
	// descLookahead bounds the scan for a "This <level> includes" sentence
	// after a heading.
	descLookahead = 10
	// bodyLookahead bounds the scan for a class body. Class bodies in the
	// source run well under this; the bound guards against runaway scans
	// when a closing heading is missing.
	bodyLookahead = 80
)

// Parse reads the taxonomy document and returns one flat record per class,
// sorted by class code. Duplicate class codes are ignored after the first
// occurrence. Page-number lines (digits only) and blank lines are skipped.
func Parse(r io.Reader) ([]taxonomy.ClassRecord, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	type level struct {
		code        taxonomy.Code
		name        string
		description string
	}

	var (
		records   []taxonomy.ClassRecord
		processed = make(map[taxonomy.Code]bool)
		section   level
		division  level
		group     level
	)

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || isDigits(line) {
			continue
		}

		if m := sectionRe.FindStringSubmatch(line); m != nil {
			section = level{
				code:        taxonomy.Code(strings.ToUpper(m[1])),
				name:        strings.TrimSpace(m[2]),
				description: scanDescription(lines, i, "This section includes"),
			}
			continue
		}

		// Class before group before division: the numeric patterns are
		// anchored but a class line also satisfies none of the shorter
		// forms, so the order only matters for clarity.
		if m := classRe.FindStringSubmatch(line); m != nil {
			code := taxonomy.Code(m[1])
			if processed[code] {
				continue
			}
			if section.code == "" {
				return nil, fmt.Errorf("parse: class %s before any section heading (line %d)", code, i+1)
			}

			// Re-anchor parents from the class code when the document
			// skipped their headings.
			divCode, _ := code.DivisionCode()
			groupCode, _ := code.Parent()
			if division.code != divCode {
				division = level{code: divCode}
			}
			if group.code != groupCode {
				group = level{code: groupCode}
			}

			rec := taxonomy.ClassRecord{
				SectionCode:         section.code,
				SectionName:         section.name,
				SectionDescription:  section.description,
				DivisionCode:        division.code,
				DivisionName:        division.name,
				DivisionDescription: division.description,
				GroupCode:           group.code,
				GroupName:           group.name,
				GroupDescription:    group.description,
				ClassCode:           code,
				ClassName:           strings.TrimSpace(m[2]),
			}
			rec.Includes, rec.Excludes = scanClassBody(lines, i)

			records = append(records, rec)
			processed[code] = true
			continue
		}

		if m := groupRe.FindStringSubmatch(line); m != nil {
			code := taxonomy.Code(m[1])
			if div, _ := code.DivisionCode(); div == division.code {
				group = level{
					code:        code,
					name:        strings.TrimSpace(m[2]),
					description: scanDescription(lines, i, "This group includes"),
				}
			}
			continue
		}

		if m := divisionRe.FindStringSubmatch(line); m != nil {
			division = level{
				code:        taxonomy.Code(m[1]),
				name:        strings.TrimSpace(m[2]),
				description: scanDescription(lines, i, "This division includes"),
			}
			group = level{}
			continue
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ClassCode < records[j].ClassCode })
	return records, nil
}

// ParseFile reads and parses the taxonomy document at path.
func ParseFile(path string) ([]taxonomy.ClassRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parse: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return Parse(f)
}

// scanDescription searches the lines after a heading for the first
// sentence opening with the given marker ("This section includes" etc.)
// and returns the text following it, up to the next blank line, bullet
// or heading.
func scanDescription(lines []string, headingIdx int, marker string) string {
	for j := headingIdx + 1; j < len(lines) && j <= headingIdx+descLookahead; j++ {
		line := strings.TrimSpace(lines[j])
		if line == "" || isDigits(line) {
			continue
		}
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || anyHeading(line) {
			return ""
		}
		idx := strings.Index(line, marker)
		if idx < 0 {
			continue
		}
		desc := strings.TrimSpace(line[idx+len(marker):])
		desc = strings.TrimPrefix(desc, ":")
		desc = strings.TrimSpace(desc)
		// Continuation lines complete a sentence split across lines.
		for k := j + 1; k < len(lines) && k <= j+2; k++ {
			cont := strings.TrimSpace(lines[k])
			if cont == "" || isDigits(cont) || strings.HasPrefix(cont, "#") ||
				strings.HasPrefix(cont, "-") || strings.HasPrefix(cont, "*") {
				break
			}
			if anyHeading(cont) {
				break
			}
			desc += " " + cont
		}
		return desc
	}
	return ""
}

// scanClassBody collects the includes/excludes bullet lists following a
// class heading. The body ends at the next class heading, any markdown
// heading, or after bodyLookahead lines.
func scanClassBody(lines []string, classIdx int) (includes, excludes []taxonomy.Activity) {
	const (
		modeNone = iota
		modeIncludes
		modeExcludes
	)
	mode := modeNone

	appendTo := func(a taxonomy.Activity) {
		if mode == modeIncludes {
			includes = append(includes, a)
		} else {
			excludes = append(excludes, a)
		}
	}
	last := func() *taxonomy.Activity {
		if mode == modeIncludes && len(includes) > 0 {
			return &includes[len(includes)-1]
		}
		if mode == modeExcludes && len(excludes) > 0 {
			return &excludes[len(excludes)-1]
		}
		return nil
	}

	for j := classIdx + 1; j < len(lines) && j <= classIdx+bodyLookahead; j++ {
		line := strings.TrimSpace(lines[j])
		if line == "" || isDigits(line) {
			continue
		}
		if classRe.MatchString(line) || strings.HasPrefix(line, "#") {
			break
		}

		switch {
		case strings.Contains(line, "This class includes"):
			mode = modeIncludes
			continue
		case strings.Contains(line, "This class excludes"):
			mode = modeExcludes
			continue
		}
		if mode == modeNone {
			continue
		}

		switch {
		case strings.HasPrefix(line, "- "), line == "-":
			text := strings.TrimSpace(strings.TrimPrefix(line, "-"))
			text = strings.TrimSuffix(text, ":")
			appendTo(taxonomy.Activity{Text: text})
		case strings.HasPrefix(line, "* "), line == "*":
			if a := last(); a != nil {
				detail := strings.TrimSpace(strings.TrimPrefix(line, "*"))
				a.Details = append(a.Details, detail)
			}
		}
	}
	return includes, excludes
}

func anyHeading(line string) bool {
	return sectionRe.MatchString(line) || classRe.MatchString(line) ||
		groupRe.MatchString(line) || divisionRe.MatchString(line)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse: read: %w", err)
	}
	return lines, nil
}
