package taxonomy

// Section is a top-level letter-coded grouping of economic activity.
type Section struct {
	Code        Code   `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Division is a two-digit subdivision of a section.
type Division struct {
	Code        Code   `json:"code"`
	SectionCode Code   `json:"section_code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Group is a three-digit dotted subdivision of a division.
type Group struct {
	Code         Code   `json:"code"`
	DivisionCode Code   `json:"division_code"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
}

// Class is the finest-grained unit of classification. Includes and
// Excludes carry the activity bullet lists from the source document.
type Class struct {
	Code        Code       `json:"code"`
	GroupCode   Code       `json:"group_code"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Includes    []Activity `json:"includes,omitempty"`
	Excludes    []Activity `json:"excludes,omitempty"`
}

// Activity is a single bullet from an includes/excludes list.
// Details holds sub-bullets; Refs holds classification codes mentioned in
// the text, resolved by the cross-reference pass.
type Activity struct {
	Text    string   `json:"text"`
	Details []string `json:"details,omitempty"`
	Refs    []Code   `json:"refs,omitempty"`
}

// ClassRecord is the flat parse output: one row per class carrying its
// full ancestry. This is the shape the store persists and the exports
// emit ("scope" rows).
type ClassRecord struct {
	SectionCode        Code   `json:"section_code"`
	SectionName        string `json:"section_name"`
	SectionDescription string `json:"section_description,omitempty"`

	DivisionCode        Code   `json:"division_code"`
	DivisionName        string `json:"division_name"`
	DivisionDescription string `json:"division_description,omitempty"`

	GroupCode        Code   `json:"group_code"`
	GroupName        string `json:"group_name"`
	GroupDescription string `json:"group_description,omitempty"`

	ClassCode        Code   `json:"class_code"`
	ClassName        string `json:"class_name"`
	ClassDescription string `json:"class_description,omitempty"`

	Includes []Activity `json:"included_activities,omitempty"`
	Excludes []Activity `json:"excluded_activities,omitempty"`
}

// Counts summarises the number of entries at each level.
type Counts struct {
	Sections  int `json:"sections"`
	Divisions int `json:"divisions"`
	Groups    int `json:"groups"`
	Classes   int `json:"classes"`
}
