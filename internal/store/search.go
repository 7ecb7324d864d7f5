package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/emotu/nacex/internal/taxonomy"
)

// SearchResult is one full-text search hit.
type SearchResult struct {
	Code        taxonomy.Code `json:"code"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Rank        float64       `json:"rank"`
}

// Search performs a keyword search over class names, descriptions and
// activity text. A query that is itself a valid code resolves to an exact
// lookup; queries FTS5 rejects fall back to a LIKE scan. Results are
// ordered by FTS5 rank; limit defaults to 20.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	// Direct code lookup beats keyword matching.
	if code, level, err := taxonomy.ParseCode(query); err == nil && level == taxonomy.LevelClass {
		cl, err := s.Class(ctx, code)
		if err == nil {
			res := []SearchResult{{Code: cl.Code, Name: cl.Name, Description: cl.Description}}
			s.logSearch(ctx, query, len(res))
			return res, nil
		}
		if err != ErrNotFound {
			return nil, err
		}
	}

	var (
		results []SearchResult
		err     error
	)
	if match := ftsQuery(query); match != "" {
		results, err = s.searchFTS(ctx, match, limit)
	} else {
		err = errNoFTSTokens
	}
	if err != nil {
		// Queries FTS5 cannot serve, e.g. pure punctuation, fall back
		// to a substring scan over names and descriptions.
		results, err = s.searchLike(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("store: search %q: %w", query, err)
		}
	}

	s.logSearch(ctx, query, len(results))
	return results, nil
}

var errNoFTSTokens = fmt.Errorf("no usable fts tokens")

func (s *Store) searchFTS(ctx context.Context, match string, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, description, rank
		 FROM classes_fts
		 WHERE classes_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Code, &r.Name, &r.Description, &r.Rank); err != nil {
			return nil, fmt.Errorf("store: scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) searchLike(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	pattern := "%" + esc.Replace(query) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, description FROM classes
		 WHERE name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'
		 ORDER BY code
		 LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Code, &r.Name, &r.Description); err != nil {
			return nil, fmt.Errorf("store: scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// logSearch records the query for usage analysis. Fire-and-forget: a
// failed log write never fails the search.
func (s *Store) logSearch(ctx context.Context, query string, count int) {
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO search_log (query, result_count, searched_at) VALUES (?, ?, ?)`,
		query, count, time.Now().UnixMilli())
}

// SearchLogEntry is one recorded search.
type SearchLogEntry struct {
	Query       string    `json:"query"`
	ResultCount int       `json:"result_count"`
	SearchedAt  time.Time `json:"searched_at"`
}

// RecentSearches returns the latest recorded searches, newest first.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]SearchLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, result_count, searched_at FROM search_log ORDER BY searched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search log: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []SearchLogEntry
	for rows.Next() {
		var (
			e  SearchLogEntry
			ms int64
		)
		if err := rows.Scan(&e.Query, &e.ResultCount, &ms); err != nil {
			return nil, fmt.Errorf("store: scan search log: %w", err)
		}
		e.SearchedAt = time.UnixMilli(ms)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ftsQuery turns free text into a safe FTS5 match expression: diacritics
// folded, every token quoted and prefix-matched. Returns "" when no
// usable token remains.
func ftsQuery(q string) string {
	folded, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), q)
	if err != nil {
		folded = q
	}

	var tokens []string
	for _, tok := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens = append(tokens, `"`+tok+`"*`)
	}
	return strings.Join(tokens, " ")
}
