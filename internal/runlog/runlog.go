// Package runlog keeps a history of taxonomy ingest runs in a local
// badger store, plus short-lived idempotency markers so an unchanged
// source document is not re-ingested on every trigger.
package runlog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	runPrefix  = "run:"
	idemPrefix = "idem:"
)

// Run records a single ingest attempt.
type Run struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	SourceHash string    `json:"source_hash"`
	StartedAt  time.Time `json:"started_at"`
	Duration   int64     `json:"duration_ms"`
	Sections   int       `json:"sections"`
	Divisions  int       `json:"divisions"`
	Groups     int       `json:"groups"`
	Classes    int       `json:"classes"`
	Errors     int       `json:"errors"`
	Warnings   int       `json:"warnings"`
	Outcome    string    `json:"outcome"` // success | rejected | failed
	Detail     string    `json:"detail,omitempty"`
}

// Log is a badger-backed run history.
type Log struct {
	db      *badger.DB
	idemTTL time.Duration
}

// Open opens (or creates) the run log at path.
func Open(path string, idemTTL time.Duration) (*Log, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	return open(opts, idemTTL)
}

// OpenInMemory opens an ephemeral run log, used in tests.
func OpenInMemory(idemTTL time.Duration) (*Log, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts, idemTTL)
}

func open(opts badger.Options, idemTTL time.Duration) (*Log, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("runlog: open: %w", err)
	}
	if idemTTL <= 0 {
		idemTTL = 10 * time.Minute
	}
	return &Log{db: db, idemTTL: idemTTL}, nil
}

// Close closes the underlying store.
func (l *Log) Close() error { return l.db.Close() }

// Append stores a run record, assigning an ID when absent, and marks the
// source hash as recently seen for successful runs.
func (l *Log) Append(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	buf, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("runlog: marshal run: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(runPrefix+run.ID), buf); err != nil {
			return err
		}
		if run.Outcome == "success" && run.SourceHash != "" {
			entry := badger.NewEntry([]byte(idemPrefix+run.SourceHash), []byte(run.ID)).
				WithTTL(l.idemTTL)
			return txn.SetEntry(entry)
		}
		return nil
	})
}

// SeenRecently reports whether a successful run for the given source hash
// happened within the idempotency TTL.
func (l *Log) SeenRecently(sourceHash string) (bool, error) {
	if sourceHash == "" {
		return false, nil
	}
	seen := false
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(idemPrefix + sourceHash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		seen = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("runlog: idempotency lookup: %w", err)
	}
	return seen, nil
}

// Recent returns up to n runs, newest first.
func (l *Log) Recent(n int) ([]Run, error) {
	if n <= 0 {
		n = 20
	}
	var runs []Run
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(runPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if !strings.HasPrefix(string(it.Item().Key()), runPrefix) {
				continue
			}
			var run Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("runlog: list runs: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if len(runs) > n {
		runs = runs[:n]
	}
	return runs, nil
}
