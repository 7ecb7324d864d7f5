package parse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/emotu/nacex/internal/taxonomy"
)

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "mini-taxonomy.md"))
	require.NoError(t, err)
	return string(data)
}

func TestParseFixture(t *testing.T) {
	records, err := Parse(strings.NewReader(loadFixture(t)))
	require.NoError(t, err)

	var codes []taxonomy.Code
	for _, r := range records {
		codes = append(codes, r.ClassCode)
	}
	want := []taxonomy.Code{"01.11", "01.12", "02.10", "05.10"}
	if diff := cmp.Diff(want, codes); diff != "" {
		t.Fatalf("class codes mismatch (-want +got):\n%s", diff)
	}
}

func TestParseClassDetail(t *testing.T) {
	records, err := Parse(strings.NewReader(loadFixture(t)))
	require.NoError(t, err)

	rec := records[0]
	require.Equal(t, taxonomy.Code("01.11"), rec.ClassCode)
	require.Equal(t, "Growing of cereals (except rice), leguminous crops and oil seeds", rec.ClassName)
	require.Equal(t, taxonomy.Code("A"), rec.SectionCode)
	require.Equal(t, "Agriculture, Forestry and Fishing", rec.SectionName)
	require.Equal(t, taxonomy.Code("01"), rec.DivisionCode)
	require.Equal(t, taxonomy.Code("01.1"), rec.GroupCode)
	require.Equal(t, "Growing of non-perennial crops", rec.GroupName)

	require.Len(t, rec.Includes, 3)
	require.Equal(t, "growing of cereals such as", rec.Includes[0].Text)
	require.Equal(t, []string{"wheat", "grain maize", "barley"}, rec.Includes[0].Details)
	require.Equal(t, "growing of oil seeds", rec.Includes[2].Text)

	require.Len(t, rec.Excludes, 3)
	require.Equal(t, "growing of rice, see 01.12", rec.Excludes[0].Text)
}

func TestParseDescriptions(t *testing.T) {
	records, err := Parse(strings.NewReader(loadFixture(t)))
	require.NoError(t, err)

	rec := records[0]
	require.Equal(t, "the exploitation of vegetal and animal natural resources.", rec.SectionDescription)
	require.Equal(t,
		"two basic activities, namely the production of crop products and production of animal products.",
		rec.DivisionDescription)
	require.Contains(t, rec.GroupDescription, "growing of non-perennial crops")
}

func TestParseDerivesMissingParents(t *testing.T) {
	records, err := Parse(strings.NewReader(loadFixture(t)))
	require.NoError(t, err)

	// 02.10 appears with no division or group heading for "02"/"02.1".
	var rec *taxonomy.ClassRecord
	for i := range records {
		if records[i].ClassCode == "02.10" {
			rec = &records[i]
		}
	}
	require.NotNil(t, rec)
	require.Equal(t, taxonomy.Code("02"), rec.DivisionCode)
	require.Equal(t, taxonomy.Code("02.1"), rec.GroupCode)
	require.Empty(t, rec.DivisionName)
	require.Equal(t, taxonomy.Code("A"), rec.SectionCode)
}

func TestParseSkipsDuplicateClasses(t *testing.T) {
	records, err := Parse(strings.NewReader(loadFixture(t)))
	require.NoError(t, err)

	seen := map[taxonomy.Code]int{}
	for _, r := range records {
		seen[r.ClassCode]++
	}
	require.Equal(t, 1, seen["01.12"], "duplicate class heading must be ignored")
}

func TestParseRejectsClassBeforeSection(t *testing.T) {
	doc := "###### 01.11 Growing of cereals\n\nThis class includes:\n- something\n"
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "before any section heading")
}

func TestParseDashVariants(t *testing.T) {
	for _, dash := range []string{"–", "—", "-"} {
		doc := "# Section C " + dash + " Manufacturing\n\n###### 10.11 Processing of meat\n"
		records, err := Parse(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "Manufacturing", records[0].SectionName)
	}
}

func TestSplitSections(t *testing.T) {
	sections := SplitSections(loadFixture(t))
	require.Len(t, sections, 2)
	require.Equal(t, "Section A", sections[0].Name)
	require.Equal(t, "Section B", sections[1].Name)
	require.Contains(t, sections[0].Content, "01.11")
	require.Contains(t, sections[1].Content, "05.10")
}
