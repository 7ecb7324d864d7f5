package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emotu/nacex/internal/taxonomy"
)

func TestSearchKeyword(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	results, err := s.Search(context.Background(), "cereals", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, taxonomy.Code("01.11"), results[0].Code)
}

func TestSearchActivityText(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	// "wheat" only appears in an include sub-bullet.
	results, err := s.Search(context.Background(), "wheat", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, taxonomy.Code("01.11"), results[0].Code)
}

func TestSearchPrefixMatch(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	results, err := s.Search(context.Background(), "cere", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "tokens are prefix-matched")
}

func TestSearchByCode(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	results, err := s.Search(context.Background(), "05.10", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Mining of hard coal", results[0].Name)
}

func TestSearchSpecialCharactersAreSafe(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	// FTS5 operators must not leak through as syntax.
	for _, q := range []string{`"`, `cereals AND (`, `-*`, `cereals" OR "x`} {
		_, err := s.Search(context.Background(), q, 10)
		require.NoError(t, err, "query %q", q)
	}
}

func TestSearchLikeFallback(t *testing.T) {
	s := openTestStore(t)
	h, err := taxonomy.NewHierarchy([]taxonomy.ClassRecord{{
		SectionCode: "A", SectionName: "Agriculture",
		DivisionCode: "01", GroupCode: "01.1",
		ClassCode: "01.11", ClassName: "Growing of cereals (except rice)",
	}})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceTaxonomy(context.Background(), h, Meta{}))

	// Pure punctuation yields no FTS tokens; the substring scan still
	// finds it in the class name.
	results, err := s.Search(context.Background(), "(", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, taxonomy.Code("01.11"), results[0].Code)

	// LIKE wildcards in the query are literals, not patterns.
	results, err = s.Search(context.Background(), "%", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchDiacriticsFolded(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	results, err := s.Search(context.Background(), "cereáls", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchEmptyQuery(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	results, err := s.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestSearchLog(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	_, err := s.Search(ctx, "cereals", 10)
	require.NoError(t, err)
	_, err = s.Search(ctx, "coal", 10)
	require.NoError(t, err)

	entries, err := s.RecentSearches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "coal", entries[0].Query, "newest first")
	require.Equal(t, 1, entries[0].ResultCount)
}
