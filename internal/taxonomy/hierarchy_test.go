package taxonomy

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleRecords() []ClassRecord {
	return []ClassRecord{
		{
			SectionCode: "A", SectionName: "Agriculture, Forestry and Fishing",
			DivisionCode: "01", DivisionName: "Crop and animal production",
			GroupCode: "01.1", GroupName: "Growing of non-perennial crops",
			ClassCode: "01.11", ClassName: "Growing of cereals",
			Includes: []Activity{{Text: "growing of cereals such as wheat"}},
			Excludes: []Activity{{Text: "growing of rice, see 01.12", Refs: []Code{"01.12"}}},
		},
		{
			SectionCode: "A",
			DivisionCode: "01",
			GroupCode: "01.1",
			ClassCode: "01.12", ClassName: "Growing of rice",
		},
		{
			SectionCode: "A",
			DivisionCode: "02", DivisionName: "Forestry and logging",
			GroupCode: "02.1",
			ClassCode: "02.10", ClassName: "Silviculture",
		},
		{
			SectionCode: "B", SectionName: "Mining and Quarrying",
			DivisionCode: "05", DivisionName: "Mining of coal",
			GroupCode: "05.1",
			ClassCode: "05.10", ClassName: "Mining of hard coal",
		},
	}
}

func TestNewHierarchy(t *testing.T) {
	h, err := NewHierarchy(sampleRecords())
	if err != nil {
		t.Fatalf("NewHierarchy: %v", err)
	}

	want := Counts{Sections: 2, Divisions: 3, Groups: 3, Classes: 4}
	if diff := cmp.Diff(want, h.Counts()); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}

	cl, ok := h.Class("01.11")
	if !ok {
		t.Fatal("class 01.11 not found")
	}
	if cl.Name != "Growing of cereals" {
		t.Errorf("class name = %q", cl.Name)
	}
	if len(cl.Excludes) != 1 || cl.Excludes[0].Refs[0] != "01.12" {
		t.Errorf("exclusion refs not preserved: %+v", cl.Excludes)
	}
}

func TestHierarchyChildren(t *testing.T) {
	h, err := NewHierarchy(sampleRecords())
	if err != nil {
		t.Fatalf("NewHierarchy: %v", err)
	}

	divs := h.DivisionsOf("A")
	if len(divs) != 2 || divs[0].Code != "01" || divs[1].Code != "02" {
		t.Errorf("DivisionsOf(A) = %+v", divs)
	}

	classes := h.ClassesOf("01.1")
	if len(classes) != 2 {
		t.Fatalf("ClassesOf(01.1) = %d classes", len(classes))
	}
	if classes[0].Code != "01.11" || classes[1].Code != "01.12" {
		t.Errorf("class order wrong: %s, %s", classes[0].Code, classes[1].Code)
	}
}

func TestHierarchyAncestors(t *testing.T) {
	h, err := NewHierarchy(sampleRecords())
	if err != nil {
		t.Fatalf("NewHierarchy: %v", err)
	}

	got := h.Ancestors("01.11")
	want := []Code{"01.1", "01", "A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Ancestors(01.11) mismatch (-want +got):\n%s", diff)
	}

	if sec, ok := h.SectionOf("05.10"); !ok || sec != "B" {
		t.Errorf("SectionOf(05.10) = %q, %v", sec, ok)
	}
}

func TestHierarchySynthesisedParents(t *testing.T) {
	// A class may appear before its group/division headings; names arrive later.
	records := []ClassRecord{
		{SectionCode: "C", DivisionCode: "10", GroupCode: "10.1", ClassCode: "10.11", ClassName: "Processing of meat"},
		{SectionCode: "C", DivisionCode: "10", DivisionName: "Manufacture of food products", GroupCode: "10.1", GroupName: "Processing of meat products", ClassCode: "10.12", ClassName: "Processing of poultry meat"},
	}
	h, err := NewHierarchy(records)
	if err != nil {
		t.Fatalf("NewHierarchy: %v", err)
	}
	d, _ := h.Division("10")
	if d.Name != "Manufacture of food products" {
		t.Errorf("later record should fill empty division name, got %q", d.Name)
	}
	g, _ := h.Group("10.1")
	if g.Name != "Processing of meat products" {
		t.Errorf("later record should fill empty group name, got %q", g.Name)
	}
}

func TestNewHierarchyRejectsDuplicates(t *testing.T) {
	records := sampleRecords()
	records = append(records, records[0])
	if _, err := NewHierarchy(records); err == nil {
		t.Fatal("expected duplicate class error")
	}
}

func TestNewHierarchyRejectsMissingSection(t *testing.T) {
	records := []ClassRecord{{DivisionCode: "01", GroupCode: "01.1", ClassCode: "01.11"}}
	if _, err := NewHierarchy(records); err == nil {
		t.Fatal("expected missing section error")
	}
}
