// Package jobs drives the taxonomy ingest pipeline: read the source
// document, parse, validate, persist and export. A Runner serializes
// ingests and keeps the latest status for the API.
package jobs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/emotu/nacex/internal/cache"
	"github.com/emotu/nacex/internal/export"
	"github.com/emotu/nacex/internal/log"
	"github.com/emotu/nacex/internal/metrics"
	"github.com/emotu/nacex/internal/runlog"
	"github.com/emotu/nacex/internal/store"
	"github.com/emotu/nacex/internal/taxonomy"
	"github.com/emotu/nacex/internal/taxonomy/parse"
	"github.com/emotu/nacex/internal/taxonomy/validate"
)

// ErrAlreadyRunning is returned when an ingest is triggered while one
// is in flight.
var ErrAlreadyRunning = errors.New("jobs: ingest already running")

// ErrUnchanged is returned when the source document hash matches a
// recent successful ingest and force was not set.
var ErrUnchanged = errors.New("jobs: source unchanged since last ingest")

// ErrValidationFailed is returned when the parsed hierarchy has
// validation errors. The previous taxonomy stays in place.
var ErrValidationFailed = errors.New("jobs: validation failed")

// Config holds ingest pipeline settings.
type Config struct {
	// SourcePath is the classification source document (markdown).
	SourcePath string
	// DataDir receives the JSON and CSV exports.
	DataDir string
	// Profile supplies expected per-level counts; zero fields are not checked.
	Profile validate.Profile
}

// Status is the most recent ingest outcome, served by the API.
type Status struct {
	LastRun     time.Time       `json:"last_run"`
	LastSuccess time.Time       `json:"last_success,omitempty"`
	SourceHash  string          `json:"source_hash,omitempty"`
	Counts      taxonomy.Counts `json:"counts"`
	Warnings    int             `json:"warnings"`
	Error       string          `json:"error,omitempty"`
}

// Runner owns the ingest pipeline and its single-flight guard.
type Runner struct {
	cfg   Config
	store *store.Store
	runs  *runlog.Log
	cache cache.Cache

	running atomic.Bool

	mu         sync.RWMutex
	status     Status
	lastReport *validate.Report
}

func NewRunner(cfg Config, st *store.Store, runs *runlog.Log, c cache.Cache) *Runner {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Runner{cfg: cfg, store: st, runs: runs, cache: c}
}

// Status returns a snapshot of the last ingest outcome.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Running reports whether an ingest is in flight.
func (r *Runner) Running() bool { return r.running.Load() }

// LastReport returns the validation report of the most recent ingest
// attempt, or nil before the first one.
func (r *Runner) LastReport() *validate.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastReport
}

// LastRun returns the time and error of the last ingest, for the
// readiness checker.
func (r *Runner) LastRun() (time.Time, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.LastRun, r.status.Error
}

// Refresh runs the full pipeline. trigger names the origin (api,
// watcher, startup) for logs and metrics. With force set, the
// unchanged-source shortcut is skipped.
func (r *Runner) Refresh(ctx context.Context, trigger string, force bool) (*Status, error) {
	if !r.running.CompareAndSwap(false, true) {
		metrics.IncRefreshTrigger(trigger, "busy")
		return nil, ErrAlreadyRunning
	}
	defer r.running.Store(false)
	metrics.IncRefreshTrigger(trigger, "accepted")

	runID := uuid.NewString()
	ctx = log.ContextWithRunID(ctx, runID)
	logger := log.WithComponentFromContext(ctx, "jobs")
	logger.Info().
		Str("event", "ingest.start").
		Str("trigger", trigger).
		Str("source", r.cfg.SourcePath).
		Msg("starting taxonomy ingest")

	started := time.Now()
	run := &runlog.Run{
		ID:         runID,
		SourcePath: r.cfg.SourcePath,
		StartedAt:  started,
	}

	status, err := r.ingest(ctx, run, force)

	run.Duration = time.Since(started).Milliseconds()
	metrics.ObserveIngestDuration(time.Since(started).Seconds())
	if r.runs != nil && !errors.Is(err, ErrUnchanged) {
		if aerr := r.runs.Append(run); aerr != nil {
			logger.Warn().Err(aerr).Msg("record ingest run")
		}
	}

	switch {
	case errors.Is(err, ErrUnchanged):
		metrics.IncIngest("skipped")
		logger.Info().Str("event", "ingest.skipped").Str("hash", run.SourceHash).Msg("source unchanged")
	case errors.Is(err, ErrValidationFailed):
		metrics.IncIngest("rejected")
		logger.Error().Str("event", "ingest.rejected").Str("detail", run.Detail).Msg("taxonomy rejected by validation")
	case err != nil:
		metrics.IncIngest("failed")
		logger.Error().Err(err).Str("event", "ingest.failed").Msg("ingest failed")
	default:
		metrics.IncIngest("success")
		logger.Info().
			Str("event", "ingest.success").
			Int("classes", run.Classes).
			Int("warnings", run.Warnings).
			Int64("duration_ms", run.Duration).
			Msg("taxonomy ingest completed")
	}

	r.mu.Lock()
	r.status.LastRun = started
	if err == nil {
		r.status = *status
	} else if !errors.Is(err, ErrUnchanged) {
		r.status.Error = err.Error()
	}
	snapshot := r.status
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ingest is the pipeline body. It fills run with stage outcomes and
// returns the new status on success.
func (r *Runner) ingest(ctx context.Context, run *runlog.Run, force bool) (*Status, error) {
	logger := log.WithComponentFromContext(ctx, "jobs")

	// Stage: read.
	raw, err := os.ReadFile(r.cfg.SourcePath)
	if err != nil {
		metrics.IncIngestFailure("read")
		run.Outcome = "failed"
		run.Detail = err.Error()
		return nil, fmt.Errorf("jobs: read source: %w", err)
	}
	sum := sha256.Sum256(raw)
	run.SourceHash = hex.EncodeToString(sum[:])

	if !force && r.runs != nil {
		seen, err := r.runs.SeenRecently(run.SourceHash)
		if err != nil {
			logger.Warn().Err(err).Msg("idempotency lookup failed, continuing")
		} else if seen {
			run.Outcome = "skipped"
			return nil, ErrUnchanged
		}
	}

	// Stage: parse. Parsing reuses the bytes that were hashed, so the
	// recorded source_hash always describes the ingested content even
	// when the file changes mid-run.
	records, err := parse.Parse(bytes.NewReader(raw))
	if err != nil {
		metrics.IncIngestFailure("parse")
		run.Outcome = "failed"
		run.Detail = err.Error()
		return nil, fmt.Errorf("jobs: parse source: %w", err)
	}

	hierarchy, err := taxonomy.NewHierarchy(records)
	if err != nil {
		metrics.IncIngestFailure("parse")
		run.Outcome = "failed"
		run.Detail = err.Error()
		return nil, fmt.Errorf("jobs: build hierarchy: %w", err)
	}

	// Stage: validate. Errors keep the previous taxonomy in place.
	report := validate.Validate(hierarchy, r.cfg.Profile)
	counts := report.Counts
	run.Sections, run.Divisions = counts.Sections, counts.Divisions
	run.Groups, run.Classes = counts.Groups, counts.Classes
	run.Errors, run.Warnings = report.Errors(), report.Warnings()
	metrics.RecordValidationIssues(run.Errors, run.Warnings)

	r.mu.Lock()
	r.lastReport = report
	r.mu.Unlock()

	for _, issue := range report.Issues {
		logger.WithLevel(issue.Severity.LogLevel()).
			Str("event", "ingest.validation").
			Str("code", string(issue.Code)).
			Str("rule", issue.Rule).
			Msg(issue.Message)
	}

	if !report.OK() {
		metrics.IncIngestFailure("validate")
		run.Outcome = "rejected"
		run.Detail = report.Summary()
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, report.Summary())
	}

	// Stage: store.
	ingestedAt := time.Now()
	meta := store.Meta{
		SourcePath: r.cfg.SourcePath,
		SourceHash: run.SourceHash,
		IngestedAt: ingestedAt,
	}
	if err := r.store.ReplaceTaxonomy(ctx, hierarchy, meta); err != nil {
		metrics.IncIngestFailure("store")
		run.Outcome = "failed"
		run.Detail = err.Error()
		return nil, fmt.Errorf("jobs: persist taxonomy: %w", err)
	}

	// Stage: export. Failures are logged but do not fail the ingest;
	// the database already holds the new taxonomy.
	if err := r.writeExports(ctx); err != nil {
		metrics.IncIngestFailure("export")
		logger.Warn().Err(err).Str("event", "ingest.export_failed").Msg("export write failed")
	}

	// Cached responses describe the previous taxonomy.
	r.cache.Clear()

	metrics.RecordTaxonomyCounts(counts.Sections, counts.Divisions, counts.Groups, counts.Classes)
	run.Outcome = "success"

	return &Status{
		LastRun:     run.StartedAt,
		LastSuccess: ingestedAt,
		SourceHash:  run.SourceHash,
		Counts:      counts,
		Warnings:    run.Warnings,
	}, nil
}

func (r *Runner) writeExports(ctx context.Context) error {
	if r.cfg.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("jobs: create data dir: %w", err)
	}

	scopes, err := r.store.ScopesWithActivities(ctx)
	if err != nil {
		return fmt.Errorf("jobs: load scopes for export: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return export.WriteJSON(ctx, filepath.Join(r.cfg.DataDir, "scopes.json"), scopes)
	})
	g.Go(func() error {
		return export.WriteCSV(ctx, filepath.Join(r.cfg.DataDir, "scopes.csv"), scopes)
	})
	return g.Wait()
}
