// Package taxonomy defines the domain model for a NACE-style activity
// classification hierarchy: sections, divisions, groups and classes.
package taxonomy

import (
	"fmt"
	"strings"
)

// Level identifies the depth of a code within the hierarchy.
type Level int

const (
	LevelUnknown Level = iota
	LevelSection       // single letter, e.g. "A"
	LevelDivision      // two digits, e.g. "01"
	LevelGroup         // two digits, dot, one digit, e.g. "01.1"
	LevelClass         // two digits, dot, two digits, e.g. "01.11"
)

// String returns the lowercase level name used in logs and API payloads.
func (l Level) String() string {
	switch l {
	case LevelSection:
		return "section"
	case LevelDivision:
		return "division"
	case LevelGroup:
		return "group"
	case LevelClass:
		return "class"
	default:
		return "unknown"
	}
}

// Code is a classification code at any level of the hierarchy.
type Code string

// ParseCode normalizes a code string and determines its level.
// Accepted forms: "A".."U" (section), "01" (division), "01.1" (group),
// "01.11" (class). Leading/trailing whitespace is tolerated.
func ParseCode(s string) (Code, Level, error) {
	c := strings.TrimSpace(s)
	switch {
	case isSectionCode(c):
		return Code(strings.ToUpper(c)), LevelSection, nil
	case isDivisionCode(c):
		return Code(c), LevelDivision, nil
	case isGroupCode(c):
		return Code(c), LevelGroup, nil
	case isClassCode(c):
		return Code(c), LevelClass, nil
	default:
		return "", LevelUnknown, fmt.Errorf("taxonomy: invalid code %q", s)
	}
}

// Level determines the level of the code, or LevelUnknown for malformed codes.
func (c Code) Level() Level {
	_, lvl, err := ParseCode(string(c))
	if err != nil {
		return LevelUnknown
	}
	return lvl
}

// Parent derives the parent code from the code syntax alone.
// A class "01.11" yields the group "01.1"; a group "01.1" yields the
// division "01". Divisions and sections return false: the section a
// division belongs to is positional in the source document and must be
// resolved through a Hierarchy.
func (c Code) Parent() (Code, bool) {
	switch c.Level() {
	case LevelClass:
		return c[:4], true
	case LevelGroup:
		return c[:2], true
	default:
		return "", false
	}
}

// DivisionCode returns the two-digit division prefix for group and class
// codes, or the code itself for divisions.
func (c Code) DivisionCode() (Code, bool) {
	switch c.Level() {
	case LevelDivision:
		return c, true
	case LevelGroup, LevelClass:
		return c[:2], true
	default:
		return "", false
	}
}

func (c Code) String() string { return string(c) }

func isSectionCode(s string) bool {
	if len(s) != 1 {
		return false
	}
	r := s[0]
	return (r >= 'A' && r <= 'U') || (r >= 'a' && r <= 'u')
}

func isDivisionCode(s string) bool {
	return len(s) == 2 && isDigits(s)
}

func isGroupCode(s string) bool {
	return len(s) == 4 && s[2] == '.' && isDigits(s[:2]) && isDigits(s[3:])
}

func isClassCode(s string) bool {
	return len(s) == 5 && s[2] == '.' && isDigits(s[:2]) && isDigits(s[3:])
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
