// Command daemon runs the classification service: it ingests the NACE
// source document, persists the hierarchy and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/emotu/nacex/internal/api"
	"github.com/emotu/nacex/internal/cache"
	"github.com/emotu/nacex/internal/config"
	"github.com/emotu/nacex/internal/health"
	"github.com/emotu/nacex/internal/jobs"
	nxlog "github.com/emotu/nacex/internal/log"
	"github.com/emotu/nacex/internal/runlog"
	"github.com/emotu/nacex/internal/store"
	"github.com/emotu/nacex/internal/telemetry"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		logger := nxlog.WithComponent("daemon")
		logger.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewLoader(configPath, version).Load()
	if err != nil {
		nxlog.Configure(nxlog.Config{Level: "info", Service: "nacex", Version: version})
		return fmt.Errorf("load configuration: %w", err)
	}

	nxlog.Configure(nxlog.Config{
		Level:   cfg.LogLevel,
		Service: "nacex",
		Version: cfg.Version,
	})
	logger := nxlog.WithComponent("daemon")
	logger.Info().
		Str("source", cfg.SourcePath).
		Str("data_dir", cfg.DataDir).
		Str("listen", cfg.Listen).
		Str("cache", cfg.Cache.Backend).
		Msg("starting")

	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    "nacex",
		ServiceVersion: cfg.Version,
		Environment:    cfg.OTel.Environment,
		ExporterType:   cfg.OTel.Exporter,
		Endpoint:       cfg.OTel.Endpoint,
		SamplingRate:   cfg.OTel.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if _, err := os.Stat(cfg.DBPath); err == nil {
		diags, err := store.VerifyIntegrity(cfg.DBPath, "quick")
		if err != nil {
			return fmt.Errorf("verify database: %w", err)
		}
		if len(diags) > 0 {
			return fmt.Errorf("database %s failed integrity check: %v", cfg.DBPath, diags)
		}
	}

	st, err := store.Open(cfg.DBPath, store.DefaultConfig())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	runs, err := runlog.Open(cfg.RunlogPath, cfg.IdempotencyTTL)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer runs.Close() //nolint:errcheck

	responseCache, err := buildCache(cfg, logger)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer responseCache.Close() //nolint:errcheck

	runner := jobs.NewRunner(jobs.Config{
		SourcePath: cfg.SourcePath,
		DataDir:    cfg.DataDir,
		Profile:    cfg.Profile,
	}, st, runs, responseCache)

	// The first ingest runs before the listener so /readyz flips to
	// ready only with a loaded taxonomy. A rejected or missing source
	// is not fatal when the store already holds a previous ingest.
	if _, err := runner.Refresh(ctx, "startup", false); err != nil && !errors.Is(err, jobs.ErrUnchanged) {
		counts, cerr := st.Counts(ctx)
		if cerr != nil || counts.Classes == 0 {
			return fmt.Errorf("initial ingest: %w", err)
		}
		logger.Warn().Err(err).Msg("initial ingest failed, serving previous taxonomy")
	}

	if cfg.WatchSource {
		watcher := jobs.NewWatcher(runner, cfg.WatchDebounce)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("source watcher stopped")
			}
		}()
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("store", st))
	hm.RegisterChecker(health.NewTaxonomyChecker(func(ctx context.Context) (int, error) {
		counts, err := st.Counts(ctx)
		if err != nil {
			return 0, err
		}
		return counts.Classes, nil
	}))
	hm.RegisterChecker(health.NewLastIngestChecker(24*time.Hour, func() (time.Time, string) {
		status := runner.Status()
		return status.LastSuccess, status.Error
	}))

	server := api.NewServer(cfg, st, runner, runs, responseCache, hm)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Listen).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func buildCache(cfg config.AppConfig, logger zerolog.Logger) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		c, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "none":
		return cache.NewNoOpCache(), nil
	default:
		return cache.NewMemoryCache(cfg.Cache.TTL), nil
	}
}
