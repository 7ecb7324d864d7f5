// Package validate checks a classification hierarchy against its
// structural invariants and an expected-count profile, and resolves
// exclusion cross-references between codes.
package validate

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/emotu/nacex/internal/taxonomy"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// LogLevel maps the severity onto a zerolog level.
func (s Severity) LogLevel() zerolog.Level {
	if s == SeverityError {
		return zerolog.ErrorLevel
	}
	return zerolog.WarnLevel
}

// Issue is a single validation finding.
type Issue struct {
	Severity Severity      `json:"severity"`
	Code     taxonomy.Code `json:"code,omitempty"`
	Rule     string        `json:"rule"`
	Message  string        `json:"message"`
}

// Report is the outcome of a validation run.
type Report struct {
	Counts     taxonomy.Counts       `json:"counts"`
	PerSection map[taxonomy.Code]int `json:"classes_per_section"`
	Issues     []Issue               `json:"issues,omitempty"`
}

// OK reports whether the hierarchy passed without structural errors.
// Warnings do not fail a run.
func (r *Report) OK() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns the number of error-severity issues.
func (r *Report) Errors() int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Warnings returns the number of warning-severity issues.
func (r *Report) Warnings() int {
	return len(r.Issues) - r.Errors()
}

// Summary renders a one-line digest for logs and run records.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d sections, %d divisions, %d groups, %d classes; %d errors, %d warnings",
		r.Counts.Sections, r.Counts.Divisions, r.Counts.Groups, r.Counts.Classes,
		r.Errors(), r.Warnings())
}

// Profile is the expected shape of a complete taxonomy. Zero fields are
// not checked.
type Profile struct {
	Sections  int `json:"sections" yaml:"sections"`
	Divisions int `json:"divisions" yaml:"divisions"`
	Groups    int `json:"groups" yaml:"groups"`
	Classes   int `json:"classes" yaml:"classes"`
}

// NACERev2Profile is the published shape of the NACE Rev. 2 taxonomy.
func NACERev2Profile() Profile {
	return Profile{Sections: 21, Divisions: 88, Groups: 272, Classes: 615}
}

// Validate runs all structural and profile checks against the hierarchy.
// ResolveRefs must have run first for cross-reference checks to see refs;
// Validate calls it itself when refs are absent.
func Validate(h *taxonomy.Hierarchy, profile Profile) *Report {
	ResolveRefs(h)

	report := &Report{
		Counts:     h.Counts(),
		PerSection: make(map[taxonomy.Code]int),
	}

	checkStructure(h, report)
	checkNames(h, report)
	checkRefs(h, report)
	checkProfile(h, profile, report)

	for _, cl := range h.Classes() {
		if sec, ok := h.SectionOf(cl.Code); ok {
			report.PerSection[sec]++
		}
	}
	return report
}

func checkStructure(h *taxonomy.Hierarchy, report *Report) {
	for _, d := range h.Divisions() {
		if _, ok := h.Section(d.SectionCode); !ok {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Code:     d.Code,
				Rule:     "parent-exists",
				Message:  fmt.Sprintf("division %s references missing section %s", d.Code, d.SectionCode),
			})
		}
	}
	for _, g := range h.Groups() {
		if _, ok := h.Division(g.DivisionCode); !ok {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Code:     g.Code,
				Rule:     "parent-exists",
				Message:  fmt.Sprintf("group %s references missing division %s", g.Code, g.DivisionCode),
			})
		}
		if !strings.HasPrefix(string(g.Code), string(g.DivisionCode)) {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Code:     g.Code,
				Rule:     "parent-prefix",
				Message:  fmt.Sprintf("group %s is not a child of division %s by code", g.Code, g.DivisionCode),
			})
		}
	}
	for _, cl := range h.Classes() {
		if _, ok := h.Group(cl.GroupCode); !ok {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Code:     cl.Code,
				Rule:     "parent-exists",
				Message:  fmt.Sprintf("class %s references missing group %s", cl.Code, cl.GroupCode),
			})
		}
		if !strings.HasPrefix(string(cl.Code), string(cl.GroupCode)) {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Code:     cl.Code,
				Rule:     "parent-prefix",
				Message:  fmt.Sprintf("class %s is not a child of group %s by code", cl.Code, cl.GroupCode),
			})
		}
	}
}

func checkNames(h *taxonomy.Hierarchy, report *Report) {
	for _, cl := range h.Classes() {
		if strings.TrimSpace(cl.Name) == "" {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityWarning,
				Code:     cl.Code,
				Rule:     "empty-name",
				Message:  fmt.Sprintf("class %s has no name", cl.Code),
			})
		}
	}
	for _, d := range h.Divisions() {
		if strings.TrimSpace(d.Name) == "" {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityWarning,
				Code:     d.Code,
				Rule:     "empty-name",
				Message:  fmt.Sprintf("division %s has no name", d.Code),
			})
		}
	}
}

func checkRefs(h *taxonomy.Hierarchy, report *Report) {
	for _, cl := range h.Classes() {
		for _, act := range cl.Excludes {
			for _, ref := range act.Refs {
				if ref == cl.Code {
					report.Issues = append(report.Issues, Issue{
						Severity: SeverityError,
						Code:     cl.Code,
						Rule:     "self-reference",
						Message:  fmt.Sprintf("class %s excludes itself (%q)", cl.Code, act.Text),
					})
					continue
				}
				if !h.Contains(ref) {
					report.Issues = append(report.Issues, Issue{
						Severity: SeverityWarning,
						Code:     cl.Code,
						Rule:     "dangling-reference",
						Message:  fmt.Sprintf("class %s exclusion references unknown code %s", cl.Code, ref),
					})
				}
			}
		}
	}
}

func checkProfile(h *taxonomy.Hierarchy, profile Profile, report *Report) {
	counts := h.Counts()
	check := func(got, want int, level string) {
		if want > 0 && got != want {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityWarning,
				Rule:     "profile-count",
				Message:  fmt.Sprintf("expected %d %s, found %d", want, level, got),
			})
		}
	}
	check(counts.Sections, profile.Sections, "sections")
	check(counts.Divisions, profile.Divisions, "divisions")
	check(counts.Groups, profile.Groups, "groups")
	check(counts.Classes, profile.Classes, "classes")
}
