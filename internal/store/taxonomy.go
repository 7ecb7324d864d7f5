package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emotu/nacex/internal/taxonomy"
)

// ErrNotFound is returned when a code has no entry at the requested level.
var ErrNotFound = errors.New("store: not found")

// Meta describes the provenance of the currently loaded taxonomy.
type Meta struct {
	SourcePath string    `json:"source_path"`
	SourceHash string    `json:"source_hash"`
	IngestedAt time.Time `json:"ingested_at"`
}

// ReplaceTaxonomy replaces the entire stored hierarchy in one transaction,
// including the FTS index and provenance metadata.
func (s *Store) ReplaceTaxonomy(ctx context.Context, h *taxonomy.Hierarchy, meta Meta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"activities", "classes_fts", "classes", "groups", "divisions", "sections"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("store: clear %s: %w", table, err)
		}
	}

	for _, sec := range h.Sections() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sections (code, name, description) VALUES (?, ?, ?)`,
			sec.Code, sec.Name, sec.Description); err != nil {
			return fmt.Errorf("store: insert section %s: %w", sec.Code, err)
		}
	}
	for _, div := range h.Divisions() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO divisions (code, section_code, name, description) VALUES (?, ?, ?, ?)`,
			div.Code, div.SectionCode, div.Name, div.Description); err != nil {
			return fmt.Errorf("store: insert division %s: %w", div.Code, err)
		}
	}
	for _, g := range h.Groups() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups (code, division_code, name, description) VALUES (?, ?, ?, ?)`,
			g.Code, g.DivisionCode, g.Name, g.Description); err != nil {
			return fmt.Errorf("store: insert group %s: %w", g.Code, err)
		}
	}
	for _, cl := range h.Classes() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO classes (code, group_code, name, description) VALUES (?, ?, ?, ?)`,
			cl.Code, cl.GroupCode, cl.Name, cl.Description); err != nil {
			return fmt.Errorf("store: insert class %s: %w", cl.Code, err)
		}
		if err := insertActivities(ctx, tx, cl.Code, "include", cl.Includes); err != nil {
			return err
		}
		if err := insertActivities(ctx, tx, cl.Code, "exclude", cl.Excludes); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO classes_fts (code, name, description, activities) VALUES (?, ?, ?, ?)`,
			cl.Code, cl.Name, cl.Description, activityText(cl)); err != nil {
			return fmt.Errorf("store: index class %s: %w", cl.Code, err)
		}
	}

	for key, value := range map[string]string{
		"source_path": meta.SourcePath,
		"source_hash": meta.SourceHash,
		"ingested_at": meta.IngestedAt.UTC().Format(time.RFC3339),
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
			return fmt.Errorf("store: write meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func insertActivities(ctx context.Context, tx *sql.Tx, class taxonomy.Code, kind string, acts []taxonomy.Activity) error {
	for i, act := range acts {
		details, err := json.Marshal(emptyAsList(act.Details))
		if err != nil {
			return fmt.Errorf("store: marshal details: %w", err)
		}
		refs, err := json.Marshal(emptyRefsAsList(act.Refs))
		if err != nil {
			return fmt.Errorf("store: marshal refs: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activities (class_code, kind, position, text, details_json, refs_json)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			class, kind, i, act.Text, string(details), string(refs)); err != nil {
			return fmt.Errorf("store: insert %s activity for %s: %w", kind, class, err)
		}
	}
	return nil
}

func emptyAsList(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func emptyRefsAsList(v []taxonomy.Code) []taxonomy.Code {
	if v == nil {
		return []taxonomy.Code{}
	}
	return v
}

// activityText flattens all activity bullets of a class for FTS indexing.
func activityText(cl *taxonomy.Class) string {
	var b strings.Builder
	write := func(acts []taxonomy.Activity) {
		for _, a := range acts {
			b.WriteString(a.Text)
			b.WriteString("\n")
			for _, d := range a.Details {
				b.WriteString(d)
				b.WriteString("\n")
			}
		}
	}
	write(cl.Includes)
	write(cl.Excludes)
	return b.String()
}

// Sections returns all sections in code order.
func (s *Store) Sections(ctx context.Context) ([]taxonomy.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, description FROM sections ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("store: sections: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []taxonomy.Section
	for rows.Next() {
		var sec taxonomy.Section
		if err := rows.Scan(&sec.Code, &sec.Name, &sec.Description); err != nil {
			return nil, fmt.Errorf("store: scan section: %w", err)
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// Section returns one section and its divisions.
func (s *Store) Section(ctx context.Context, code taxonomy.Code) (*taxonomy.Section, []taxonomy.Division, error) {
	var sec taxonomy.Section
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, description FROM sections WHERE code = ?`, code).
		Scan(&sec.Code, &sec.Name, &sec.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: section %s: %w", code, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, section_code, name, description FROM divisions WHERE section_code = ? ORDER BY code`, code)
	if err != nil {
		return nil, nil, fmt.Errorf("store: divisions of %s: %w", code, err)
	}
	defer rows.Close() //nolint:errcheck

	var divs []taxonomy.Division
	for rows.Next() {
		var d taxonomy.Division
		if err := rows.Scan(&d.Code, &d.SectionCode, &d.Name, &d.Description); err != nil {
			return nil, nil, fmt.Errorf("store: scan division: %w", err)
		}
		divs = append(divs, d)
	}
	return &sec, divs, rows.Err()
}

// Division returns one division and its groups.
func (s *Store) Division(ctx context.Context, code taxonomy.Code) (*taxonomy.Division, []taxonomy.Group, error) {
	var d taxonomy.Division
	err := s.db.QueryRowContext(ctx,
		`SELECT code, section_code, name, description FROM divisions WHERE code = ?`, code).
		Scan(&d.Code, &d.SectionCode, &d.Name, &d.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: division %s: %w", code, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, division_code, name, description FROM groups WHERE division_code = ? ORDER BY code`, code)
	if err != nil {
		return nil, nil, fmt.Errorf("store: groups of %s: %w", code, err)
	}
	defer rows.Close() //nolint:errcheck

	var groups []taxonomy.Group
	for rows.Next() {
		var g taxonomy.Group
		if err := rows.Scan(&g.Code, &g.DivisionCode, &g.Name, &g.Description); err != nil {
			return nil, nil, fmt.Errorf("store: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return &d, groups, rows.Err()
}

// Group returns one group and its classes (without activity lists).
func (s *Store) Group(ctx context.Context, code taxonomy.Code) (*taxonomy.Group, []taxonomy.Class, error) {
	var g taxonomy.Group
	err := s.db.QueryRowContext(ctx,
		`SELECT code, division_code, name, description FROM groups WHERE code = ?`, code).
		Scan(&g.Code, &g.DivisionCode, &g.Name, &g.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: group %s: %w", code, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, group_code, name, description FROM classes WHERE group_code = ? ORDER BY code`, code)
	if err != nil {
		return nil, nil, fmt.Errorf("store: classes of %s: %w", code, err)
	}
	defer rows.Close() //nolint:errcheck

	var classes []taxonomy.Class
	for rows.Next() {
		var cl taxonomy.Class
		if err := rows.Scan(&cl.Code, &cl.GroupCode, &cl.Name, &cl.Description); err != nil {
			return nil, nil, fmt.Errorf("store: scan class: %w", err)
		}
		classes = append(classes, cl)
	}
	return &g, classes, rows.Err()
}

// Class returns one class with its includes/excludes activity lists.
func (s *Store) Class(ctx context.Context, code taxonomy.Code) (*taxonomy.Class, error) {
	var cl taxonomy.Class
	err := s.db.QueryRowContext(ctx,
		`SELECT code, group_code, name, description FROM classes WHERE code = ?`, code).
		Scan(&cl.Code, &cl.GroupCode, &cl.Name, &cl.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: class %s: %w", code, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, text, details_json, refs_json FROM activities
		 WHERE class_code = ? ORDER BY kind, position`, code)
	if err != nil {
		return nil, fmt.Errorf("store: activities of %s: %w", code, err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var kind, text, detailsJSON, refsJSON string
		if err := rows.Scan(&kind, &text, &detailsJSON, &refsJSON); err != nil {
			return nil, fmt.Errorf("store: scan activity: %w", err)
		}
		act, err := decodeActivity(text, detailsJSON, refsJSON)
		if err != nil {
			return nil, fmt.Errorf("store: decode activity for %s: %w", code, err)
		}
		if kind == "include" {
			cl.Includes = append(cl.Includes, act)
		} else {
			cl.Excludes = append(cl.Excludes, act)
		}
	}
	return &cl, rows.Err()
}

func decodeActivity(text, detailsJSON, refsJSON string) (taxonomy.Activity, error) {
	act := taxonomy.Activity{Text: text}
	if err := json.Unmarshal([]byte(detailsJSON), &act.Details); err != nil {
		return act, err
	}
	if err := json.Unmarshal([]byte(refsJSON), &act.Refs); err != nil {
		return act, err
	}
	if len(act.Details) == 0 {
		act.Details = nil
	}
	if len(act.Refs) == 0 {
		act.Refs = nil
	}
	return act, nil
}

// Scope returns the flat ancestry row for one class.
func (s *Store) Scope(ctx context.Context, code taxonomy.Code) (*taxonomy.ClassRecord, error) {
	recs, err := s.scopes(ctx, "WHERE c.code = ?", code)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	rec := recs[0]
	cl, err := s.Class(ctx, code)
	if err != nil {
		return nil, err
	}
	rec.Includes = cl.Includes
	rec.Excludes = cl.Excludes
	return &rec, nil
}

// Scopes returns the flat class rows ordered by class code, without
// activity lists. This is the payload client applications load up front.
func (s *Store) Scopes(ctx context.Context) ([]taxonomy.ClassRecord, error) {
	return s.scopes(ctx, "")
}

// ScopesWithActivities returns the flat class rows with their
// include/exclude lists attached, loaded in a single pass. The file
// exports use this variant; the API list payload stays lean.
func (s *Store) ScopesWithActivities(ctx context.Context) ([]taxonomy.ClassRecord, error) {
	recs, err := s.scopes(ctx, "")
	if err != nil {
		return nil, err
	}
	byCode := make(map[taxonomy.Code]*taxonomy.ClassRecord, len(recs))
	for i := range recs {
		byCode[recs[i].ClassCode] = &recs[i]
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT class_code, kind, text, details_json, refs_json FROM activities
		 ORDER BY class_code, kind, position`)
	if err != nil {
		return nil, fmt.Errorf("store: scope activities: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			classCode                         taxonomy.Code
			kind, text, detailsJSON, refsJSON string
		)
		if err := rows.Scan(&classCode, &kind, &text, &detailsJSON, &refsJSON); err != nil {
			return nil, fmt.Errorf("store: scan scope activity: %w", err)
		}
		rec, ok := byCode[classCode]
		if !ok {
			continue
		}
		act, err := decodeActivity(text, detailsJSON, refsJSON)
		if err != nil {
			return nil, fmt.Errorf("store: decode activity for %s: %w", classCode, err)
		}
		if kind == "include" {
			rec.Includes = append(rec.Includes, act)
		} else {
			rec.Excludes = append(rec.Excludes, act)
		}
	}
	return recs, rows.Err()
}

func (s *Store) scopes(ctx context.Context, where string, args ...any) ([]taxonomy.ClassRecord, error) {
	q := `SELECT c.code, c.name, c.description,
	             g.code, g.name, g.description,
	             d.code, d.name, d.description,
	             sec.code, sec.name, sec.description
	      FROM classes c
	      JOIN groups g ON g.code = c.group_code
	      JOIN divisions d ON d.code = g.division_code
	      JOIN sections sec ON sec.code = d.section_code `
	q += where + " ORDER BY c.code"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: scopes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []taxonomy.ClassRecord
	for rows.Next() {
		var rec taxonomy.ClassRecord
		if err := rows.Scan(
			&rec.ClassCode, &rec.ClassName, &rec.ClassDescription,
			&rec.GroupCode, &rec.GroupName, &rec.GroupDescription,
			&rec.DivisionCode, &rec.DivisionName, &rec.DivisionDescription,
			&rec.SectionCode, &rec.SectionName, &rec.SectionDescription,
		); err != nil {
			return nil, fmt.Errorf("store: scan scope: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Counts reports how many rows exist at each level.
func (s *Store) Counts(ctx context.Context) (taxonomy.Counts, error) {
	var c taxonomy.Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM sections),
		(SELECT COUNT(*) FROM divisions),
		(SELECT COUNT(*) FROM groups),
		(SELECT COUNT(*) FROM classes)`).
		Scan(&c.Sections, &c.Divisions, &c.Groups, &c.Classes)
	if err != nil {
		return c, fmt.Errorf("store: counts: %w", err)
	}
	return c, nil
}

// Meta returns the provenance of the loaded taxonomy. A zero Meta with no
// error means nothing has been ingested yet.
func (s *Store) Meta(ctx context.Context) (Meta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("store: meta: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var m Meta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Meta{}, fmt.Errorf("store: scan meta: %w", err)
		}
		switch key {
		case "source_path":
			m.SourcePath = value
		case "source_hash":
			m.SourceHash = value
		case "ingested_at":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				m.IngestedAt = t
			}
		}
	}
	return m, rows.Err()
}
