package validate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/emotu/nacex/internal/taxonomy"
)

func TestExtractRefs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []taxonomy.Code
	}{
		{
			name: "single class ref",
			text: "growing of rice, see 01.12",
			want: []taxonomy.Code{"01.12"},
		},
		{
			name: "multiple class refs",
			text: "see 10.39 and 10.89",
			want: []taxonomy.Code{"10.39", "10.89"},
		},
		{
			name: "group ref",
			text: "processing activities, see group 10.3",
			want: []taxonomy.Code{"10.3"},
		},
		{
			name: "division ref",
			text: "logging, see division 02",
			want: []taxonomy.Code{"02"},
		},
		{
			name: "section ref",
			text: "construction works, see section F",
			want: []taxonomy.Code{"F"},
		},
		{
			name: "mixed refs deduplicated",
			text: "see 01.13, also 01.13, and division 02",
			want: []taxonomy.Code{"01.13", "02"},
		},
		{
			name: "no refs",
			text: "growing of oil seeds",
			want: nil,
		},
		{
			name: "section letter without keyword is not a ref",
			text: "vitamin A enrichment",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractRefs(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractRefs(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestResolveRefs(t *testing.T) {
	h := buildHierarchy(t, []taxonomy.ClassRecord{
		{
			SectionCode: "A", DivisionCode: "01", GroupCode: "01.1", ClassCode: "01.11",
			ClassName: "Growing of cereals",
			Excludes:  []taxonomy.Activity{{Text: "growing of rice, see 01.12"}},
		},
		{
			SectionCode: "A", DivisionCode: "01", GroupCode: "01.1", ClassCode: "01.12",
			ClassName: "Growing of rice",
		},
	})

	ResolveRefs(h)

	cl, _ := h.Class("01.11")
	if len(cl.Excludes[0].Refs) != 1 || cl.Excludes[0].Refs[0] != "01.12" {
		t.Errorf("refs = %v, want [01.12]", cl.Excludes[0].Refs)
	}
}
