package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emotu/nacex/internal/jobs"
	"github.com/emotu/nacex/internal/log"
	"github.com/emotu/nacex/internal/metrics"
	"github.com/emotu/nacex/internal/store"
	"github.com/emotu/nacex/internal/taxonomy"
)

// handleTaxonomy serves counts and provenance of the loaded taxonomy.
func (s *Server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	meta, err := s.store.Meta(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	body := map[string]any{
		"counts":      counts,
		"source_path": meta.SourcePath,
		"source_hash": meta.SourceHash,
		"ingested_at": meta.IngestedAt,
	}
	if report := s.runner.LastReport(); report != nil {
		body["validation"] = report.Summary()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	s.respondCached(w, r, "sections", func(ctx context.Context) (any, error) {
		return s.store.Sections(ctx)
	})
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	code, ok := s.codeParam(w, r, taxonomy.LevelSection)
	if !ok {
		return
	}
	s.respondCached(w, r, "section:"+string(code), func(ctx context.Context) (any, error) {
		section, divisions, err := s.store.Section(ctx, code)
		if err != nil {
			return nil, err
		}
		return map[string]any{"section": section, "divisions": divisions}, nil
	})
}

func (s *Server) handleDivision(w http.ResponseWriter, r *http.Request) {
	code, ok := s.codeParam(w, r, taxonomy.LevelDivision)
	if !ok {
		return
	}
	s.respondCached(w, r, "division:"+string(code), func(ctx context.Context) (any, error) {
		division, groups, err := s.store.Division(ctx, code)
		if err != nil {
			return nil, err
		}
		return map[string]any{"division": division, "groups": groups}, nil
	})
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	code, ok := s.codeParam(w, r, taxonomy.LevelGroup)
	if !ok {
		return
	}
	s.respondCached(w, r, "group:"+string(code), func(ctx context.Context) (any, error) {
		group, classes, err := s.store.Group(ctx, code)
		if err != nil {
			return nil, err
		}
		return map[string]any{"group": group, "classes": classes}, nil
	})
}

func (s *Server) handleClass(w http.ResponseWriter, r *http.Request) {
	code, ok := s.codeParam(w, r, taxonomy.LevelClass)
	if !ok {
		return
	}
	s.respondCached(w, r, "class:"+string(code), func(ctx context.Context) (any, error) {
		return s.store.Class(ctx, code)
	})
}

// handleScope serves the flat ancestry row for one class.
func (s *Server) handleScope(w http.ResponseWriter, r *http.Request) {
	code, ok := s.codeParam(w, r, taxonomy.LevelClass)
	if !ok {
		return
	}
	s.respondCached(w, r, "scope:"+string(code), func(ctx context.Context) (any, error) {
		return s.store.Scope(ctx, code)
	})
}

func (s *Server) handleScopes(w http.ResponseWriter, r *http.Request) {
	s.respondCached(w, r, "scopes", func(ctx context.Context) (any, error) {
		return s.store.Scopes(ctx)
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	key := fmt.Sprintf("search:%s:%d", query, limit)
	s.respondCached(w, r, key, func(ctx context.Context) (any, error) {
		results, err := s.store.Search(ctx, query, limit)
		if err != nil {
			metrics.IncSearch("error")
			return nil, err
		}
		if len(results) == 0 {
			metrics.IncSearch("empty")
		} else {
			metrics.IncSearch("hit")
		}
		return map[string]any{
			"query":   query,
			"count":   len(results),
			"results": results,
		}, nil
	})
}

// handleValidation serves the validation report of the last ingest.
func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	report := s.runner.LastReport()
	if report == nil {
		writeNotFound(w, "no ingest has run yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        s.cfg.Version,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"running":        s.runner.Running(),
		"ingest":         s.runner.Status(),
		"cache":          s.cache.Stats(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []any{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.runs.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleRefresh triggers an ingest. The pipeline runs detached from
// the request; callers poll /status or /runs for the outcome.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.runner.Running() {
		metrics.IncRefreshTrigger("api", "busy")
		writeError(w, http.StatusConflict, "ingest already running")
		return
	}
	if !s.refreshLimiter.Allow(s.clientIP(r)) {
		metrics.IncRefreshTrigger("api", "throttled")
		writeError(w, http.StatusTooManyRequests, "refresh rate limit exceeded")
		return
	}
	force := r.URL.Query().Get("force") == "true"

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := s.runner.Refresh(ctx, "api", force); err != nil &&
			!errors.Is(err, jobs.ErrAlreadyRunning) && !errors.Is(err, jobs.ErrUnchanged) {
			logger := log.WithComponentFromContext(ctx, "api")
			logger.Error().Err(err).Msg("api-triggered ingest failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleExportFile serves a previously written export artifact.
func (s *Server) handleExportFile(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.cfg.DataDir, name)
		if _, err := os.Stat(path); err != nil {
			writeNotFound(w, "export not generated yet")
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		http.ServeFile(w, r, path)
	}
}

// codeParam parses the {code} route parameter and enforces its level.
func (s *Server) codeParam(w http.ResponseWriter, r *http.Request, want taxonomy.Level) (taxonomy.Code, bool) {
	raw := chi.URLParam(r, "code")
	code, level, err := taxonomy.ParseCode(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if level != want {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("code %s is a %s, expected a %s", code, level, want))
		return "", false
	}
	return code, true
}

// respondCached serves from the response cache when possible, loading
// and storing the marshaled payload on miss. Cache entries are cleared
// on ingest, so TTL only bounds staleness across instances.
func (s *Server) respondCached(w http.ResponseWriter, r *http.Request, key string, load func(context.Context) (any, error)) {
	if payload, ok := s.cache.Get(key); ok {
		metrics.IncCacheHit()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
		return
	}
	metrics.IncCacheMiss()

	v, err := load(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload, err := jsonMarshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.cache.Set(key, payload, s.cfg.Cache.TTL)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "miss")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
