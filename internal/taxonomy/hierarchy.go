package taxonomy

import (
	"fmt"
	"sort"
)

// Hierarchy is an immutable in-memory index over the four classification
// levels. Build one with NewHierarchy; lookups are safe for concurrent use.
type Hierarchy struct {
	sections  map[Code]*Section
	divisions map[Code]*Division
	groups    map[Code]*Group
	classes   map[Code]*Class

	sectionOrder  []Code
	divisionOrder []Code
	groupOrder    []Code
	classOrder    []Code

	// division -> section resolved from document order
	divisionSection map[Code]Code
}

// NewHierarchy builds a hierarchy index from flat parse records.
// Group and division rows that the document implies but never heads
// explicitly are synthesised from the class codes (with empty names).
func NewHierarchy(records []ClassRecord) (*Hierarchy, error) {
	h := &Hierarchy{
		sections:        make(map[Code]*Section),
		divisions:       make(map[Code]*Division),
		groups:          make(map[Code]*Group),
		classes:         make(map[Code]*Class),
		divisionSection: make(map[Code]Code),
	}

	for i := range records {
		rec := &records[i]
		if rec.SectionCode == "" {
			return nil, fmt.Errorf("taxonomy: class %s has no section", rec.ClassCode)
		}
		if _, _, err := ParseCode(string(rec.ClassCode)); err != nil {
			return nil, err
		}

		if s, ok := h.sections[rec.SectionCode]; !ok {
			h.sections[rec.SectionCode] = &Section{
				Code:        rec.SectionCode,
				Name:        rec.SectionName,
				Description: rec.SectionDescription,
			}
			h.sectionOrder = append(h.sectionOrder, rec.SectionCode)
		} else {
			fillIfEmpty(&s.Name, rec.SectionName)
			fillIfEmpty(&s.Description, rec.SectionDescription)
		}

		if d, ok := h.divisions[rec.DivisionCode]; !ok {
			h.divisions[rec.DivisionCode] = &Division{
				Code:        rec.DivisionCode,
				SectionCode: rec.SectionCode,
				Name:        rec.DivisionName,
				Description: rec.DivisionDescription,
			}
			h.divisionOrder = append(h.divisionOrder, rec.DivisionCode)
			h.divisionSection[rec.DivisionCode] = rec.SectionCode
		} else {
			fillIfEmpty(&d.Name, rec.DivisionName)
			fillIfEmpty(&d.Description, rec.DivisionDescription)
		}

		if g, ok := h.groups[rec.GroupCode]; !ok {
			h.groups[rec.GroupCode] = &Group{
				Code:         rec.GroupCode,
				DivisionCode: rec.DivisionCode,
				Name:         rec.GroupName,
				Description:  rec.GroupDescription,
			}
			h.groupOrder = append(h.groupOrder, rec.GroupCode)
		} else {
			fillIfEmpty(&g.Name, rec.GroupName)
			fillIfEmpty(&g.Description, rec.GroupDescription)
		}

		if _, ok := h.classes[rec.ClassCode]; ok {
			return nil, fmt.Errorf("taxonomy: duplicate class code %s", rec.ClassCode)
		}
		h.classes[rec.ClassCode] = &Class{
			Code:        rec.ClassCode,
			GroupCode:   rec.GroupCode,
			Name:        rec.ClassName,
			Description: rec.ClassDescription,
			Includes:    rec.Includes,
			Excludes:    rec.Excludes,
		}
		h.classOrder = append(h.classOrder, rec.ClassCode)
	}

	sort.Slice(h.sectionOrder, func(i, j int) bool { return h.sectionOrder[i] < h.sectionOrder[j] })
	sort.Slice(h.divisionOrder, func(i, j int) bool { return h.divisionOrder[i] < h.divisionOrder[j] })
	sort.Slice(h.groupOrder, func(i, j int) bool { return h.groupOrder[i] < h.groupOrder[j] })
	sort.Slice(h.classOrder, func(i, j int) bool { return h.classOrder[i] < h.classOrder[j] })

	return h, nil
}

func fillIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// Section returns the section with the given code.
func (h *Hierarchy) Section(code Code) (*Section, bool) {
	s, ok := h.sections[code]
	return s, ok
}

// Division returns the division with the given code.
func (h *Hierarchy) Division(code Code) (*Division, bool) {
	d, ok := h.divisions[code]
	return d, ok
}

// Group returns the group with the given code.
func (h *Hierarchy) Group(code Code) (*Group, bool) {
	g, ok := h.groups[code]
	return g, ok
}

// Class returns the class with the given code.
func (h *Hierarchy) Class(code Code) (*Class, bool) {
	c, ok := h.classes[code]
	return c, ok
}

// Contains reports whether any entry at any level has the given code.
func (h *Hierarchy) Contains(code Code) bool {
	switch code.Level() {
	case LevelSection:
		_, ok := h.sections[code]
		return ok
	case LevelDivision:
		_, ok := h.divisions[code]
		return ok
	case LevelGroup:
		_, ok := h.groups[code]
		return ok
	case LevelClass:
		_, ok := h.classes[code]
		return ok
	default:
		return false
	}
}

// Sections returns all sections in code order.
func (h *Hierarchy) Sections() []*Section {
	out := make([]*Section, 0, len(h.sectionOrder))
	for _, c := range h.sectionOrder {
		out = append(out, h.sections[c])
	}
	return out
}

// Divisions returns all divisions in code order.
func (h *Hierarchy) Divisions() []*Division {
	out := make([]*Division, 0, len(h.divisionOrder))
	for _, c := range h.divisionOrder {
		out = append(out, h.divisions[c])
	}
	return out
}

// Groups returns all groups in code order.
func (h *Hierarchy) Groups() []*Group {
	out := make([]*Group, 0, len(h.groupOrder))
	for _, c := range h.groupOrder {
		out = append(out, h.groups[c])
	}
	return out
}

// Classes returns all classes in code order.
func (h *Hierarchy) Classes() []*Class {
	out := make([]*Class, 0, len(h.classOrder))
	for _, c := range h.classOrder {
		out = append(out, h.classes[c])
	}
	return out
}

// DivisionsOf returns the divisions belonging to a section, in code order.
func (h *Hierarchy) DivisionsOf(section Code) []*Division {
	var out []*Division
	for _, c := range h.divisionOrder {
		if h.divisions[c].SectionCode == section {
			out = append(out, h.divisions[c])
		}
	}
	return out
}

// GroupsOf returns the groups belonging to a division, in code order.
func (h *Hierarchy) GroupsOf(division Code) []*Group {
	var out []*Group
	for _, c := range h.groupOrder {
		if h.groups[c].DivisionCode == division {
			out = append(out, h.groups[c])
		}
	}
	return out
}

// ClassesOf returns the classes belonging to a group, in code order.
func (h *Hierarchy) ClassesOf(group Code) []*Class {
	var out []*Class
	for _, c := range h.classOrder {
		if h.classes[c].GroupCode == group {
			out = append(out, h.classes[c])
		}
	}
	return out
}

// Ancestors resolves the chain above a code, outermost last:
// class -> [group, division, section].
func (h *Hierarchy) Ancestors(code Code) []Code {
	var out []Code
	cur := code
	for {
		parent, ok := cur.Parent()
		if !ok {
			break
		}
		out = append(out, parent)
		cur = parent
	}
	// Division -> section is positional, not syntactic.
	if div, ok := cur.DivisionCode(); ok {
		if sec, ok := h.divisionSection[div]; ok {
			out = append(out, sec)
		}
	}
	return out
}

// SectionOf resolves the section a code ultimately belongs to.
func (h *Hierarchy) SectionOf(code Code) (Code, bool) {
	if code.Level() == LevelSection {
		_, ok := h.sections[code]
		return code, ok
	}
	div, ok := code.DivisionCode()
	if !ok {
		return "", false
	}
	sec, ok := h.divisionSection[div]
	return sec, ok
}

// Counts reports the number of entries at each level.
func (h *Hierarchy) Counts() Counts {
	return Counts{
		Sections:  len(h.sections),
		Divisions: len(h.divisions),
		Groups:    len(h.groups),
		Classes:   len(h.classes),
	}
}
