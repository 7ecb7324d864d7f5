package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emotu/nacex/internal/taxonomy"
)

func sampleScopes() []taxonomy.ClassRecord {
	return []taxonomy.ClassRecord{
		{
			SectionCode: "A", SectionName: "Agriculture, Forestry and Fishing",
			DivisionCode: "01", DivisionName: "Crop and animal production",
			GroupCode: "01.1", GroupName: "Growing of non-perennial crops",
			ClassCode: "01.11", ClassName: "Growing of cereals",
			Includes: []taxonomy.Activity{
				{Text: "growing of cereals such as", Details: []string{"wheat", "barley"}},
			},
			Excludes: []taxonomy.Activity{
				{Text: "growing of rice, see 01.12", Refs: []taxonomy.Code{"01.12"}},
			},
		},
		{
			SectionCode: "B", SectionName: "Mining and Quarrying",
			DivisionCode: "05", DivisionName: "Mining of coal",
			GroupCode: "05.1", GroupName: "Mining of hard coal",
			ClassCode: "05.10", ClassName: "Mining of hard coal",
		},
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scopes.json")

	require.NoError(t, WriteJSON(context.Background(), path, sampleScopes()))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []taxonomy.ClassRecord
	require.NoError(t, json.Unmarshal(buf, &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, taxonomy.Code("01.11"), decoded[0].ClassCode)
	require.Equal(t, []string{"wheat", "barley"}, decoded[0].Includes[0].Details)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scopes.csv")

	require.NoError(t, WriteCSV(context.Background(), path, sampleScopes()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per class")
	require.Equal(t, csvHeader, rows[0])
	require.Equal(t, "01.11", rows[1][0])
	require.Equal(t, "growing of cereals such as (wheat, barley)", rows[1][8])
	require.Equal(t, "growing of rice, see 01.12", rows[1][9])
	require.Empty(t, rows[2][8], "class without activities exports empty columns")
}

func TestWriteJSONReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scopes.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteJSON(context.Background(), path, sampleScopes()))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(buf), "stale")
}

func TestWriteJSONBadDirectory(t *testing.T) {
	err := WriteJSON(context.Background(), "/nonexistent-dir/scopes.json", sampleScopes())
	require.Error(t, err)
}
