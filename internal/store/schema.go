package store

// schema is the complete taxonomy schema. Ingest replaces all rows in one
// transaction, so the FTS table is rebuilt explicitly instead of via
// triggers.
const schema = `
CREATE TABLE IF NOT EXISTS sections (
    code        TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS divisions (
    code         TEXT PRIMARY KEY,
    section_code TEXT NOT NULL REFERENCES sections(code) ON DELETE CASCADE,
    name         TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_divisions_section ON divisions(section_code);

CREATE TABLE IF NOT EXISTS groups (
    code          TEXT PRIMARY KEY,
    division_code TEXT NOT NULL REFERENCES divisions(code) ON DELETE CASCADE,
    name          TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_groups_division ON groups(division_code);

CREATE TABLE IF NOT EXISTS classes (
    code        TEXT PRIMARY KEY,
    group_code  TEXT NOT NULL REFERENCES groups(code) ON DELETE CASCADE,
    name        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_classes_group ON classes(group_code);

CREATE TABLE IF NOT EXISTS activities (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    class_code   TEXT NOT NULL REFERENCES classes(code) ON DELETE CASCADE,
    kind         TEXT NOT NULL CHECK (kind IN ('include', 'exclude')),
    position     INTEGER NOT NULL,
    text         TEXT NOT NULL,
    details_json TEXT NOT NULL DEFAULT '[]',
    refs_json    TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_activities_class ON activities(class_code, kind, position);

CREATE VIRTUAL TABLE IF NOT EXISTS classes_fts USING fts5(
    code UNINDEXED, name, description, activities,
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TABLE IF NOT EXISTS search_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    query        TEXT NOT NULL,
    result_count INTEGER NOT NULL,
    searched_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
