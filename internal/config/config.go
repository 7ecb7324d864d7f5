// Package config loads service configuration with the precedence
// ENV > YAML file > defaults.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/emotu/nacex/internal/taxonomy/validate"
)

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version  string
	LogLevel string

	// SourcePath is the classification source document.
	SourcePath string
	// DataDir holds the SQLite database, run log and exports.
	DataDir    string
	DBPath     string
	RunlogPath string

	Listen string
	// APIToken guards mutating endpoints. Empty disables them.
	APIToken string
	// TrustedProxies are CIDRs or addresses whose X-Forwarded-For is honored.
	TrustedProxies []string
	// RequestsPerMinute is the per-IP request budget on the public API.
	RequestsPerMinute int

	// WatchSource enables re-ingest on source file changes.
	WatchSource    bool
	WatchDebounce  time.Duration
	IdempotencyTTL time.Duration

	// Profile holds expected per-level entry counts. Zero fields are
	// not checked.
	Profile validate.Profile

	Cache CacheConfig
	OTel  OTelConfig
}

// CacheConfig selects and tunes the response cache.
type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// OTelConfig holds tracing settings.
type OTelConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// FileConfig is the YAML file shape. Optional scalars use pointers so
// an explicit zero survives merging.
type FileConfig struct {
	LogLevel string `yaml:"logLevel,omitempty"`

	SourcePath string `yaml:"sourcePath,omitempty"`
	DataDir    string `yaml:"dataDir,omitempty"`
	DBPath     string `yaml:"dbPath,omitempty"`
	RunlogPath string `yaml:"runlogPath,omitempty"`

	Listen            string   `yaml:"listen,omitempty"`
	APIToken          string   `yaml:"apiToken,omitempty"`
	TrustedProxies    []string `yaml:"trustedProxies,omitempty"`
	RequestsPerMinute *int     `yaml:"requestsPerMinute,omitempty"`

	WatchSource    *bool  `yaml:"watchSource,omitempty"`
	WatchDebounce  string `yaml:"watchDebounce,omitempty"`
	IdempotencyTTL string `yaml:"idempotencyTtl,omitempty"`

	Profile *validate.Profile `yaml:"profile,omitempty"`

	Cache struct {
		Backend       string `yaml:"backend,omitempty"`
		TTL           string `yaml:"ttl,omitempty"`
		RedisAddr     string `yaml:"redisAddr,omitempty"`
		RedisPassword string `yaml:"redisPassword,omitempty"`
		RedisDB       *int   `yaml:"redisDb,omitempty"`
	} `yaml:"cache,omitempty"`

	OTel struct {
		Enabled      *bool    `yaml:"enabled,omitempty"`
		Exporter     string   `yaml:"exporter,omitempty"`
		Endpoint     string   `yaml:"endpoint,omitempty"`
		SamplingRate *float64 `yaml:"samplingRate,omitempty"`
		Environment  string   `yaml:"environment,omitempty"`
	} `yaml:"otel,omitempty"`
}

// Loader resolves configuration with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load resolves the configuration: defaults, then file, then env, then
// validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "taxonomy.db")
	}
	if cfg.RunlogPath == "" {
		cfg.RunlogPath = filepath.Join(cfg.DataDir, "runlog")
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		LogLevel:          "info",
		DataDir:           "data",
		Listen:            ":8080",
		RequestsPerMinute: 120,
		WatchDebounce:     2 * time.Second,
		IdempotencyTTL:    10 * time.Minute,
		Profile:           validate.NACERev2Profile(),
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     5 * time.Minute,
		},
		OTel: OTelConfig{
			Exporter:     "grpc",
			SamplingRate: 0.1,
			Environment:  "development",
		},
	}
}

// loadFile parses the YAML file strictly; unknown keys are fatal so
// typos never pass silently.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var fc FileConfig
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fc, nil
}

func mergeFileConfig(cfg *AppConfig, fc *FileConfig) {
	setIfNotEmpty := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIfNotEmpty(&cfg.LogLevel, fc.LogLevel)
	setIfNotEmpty(&cfg.SourcePath, fc.SourcePath)
	setIfNotEmpty(&cfg.DataDir, fc.DataDir)
	setIfNotEmpty(&cfg.DBPath, fc.DBPath)
	setIfNotEmpty(&cfg.RunlogPath, fc.RunlogPath)
	setIfNotEmpty(&cfg.Listen, fc.Listen)
	setIfNotEmpty(&cfg.APIToken, fc.APIToken)

	if len(fc.TrustedProxies) > 0 {
		cfg.TrustedProxies = fc.TrustedProxies
	}
	if fc.RequestsPerMinute != nil {
		cfg.RequestsPerMinute = *fc.RequestsPerMinute
	}
	if fc.WatchSource != nil {
		cfg.WatchSource = *fc.WatchSource
	}
	if d, err := time.ParseDuration(fc.WatchDebounce); err == nil && fc.WatchDebounce != "" {
		cfg.WatchDebounce = d
	}
	if d, err := time.ParseDuration(fc.IdempotencyTTL); err == nil && fc.IdempotencyTTL != "" {
		cfg.IdempotencyTTL = d
	}
	if fc.Profile != nil {
		cfg.Profile = *fc.Profile
	}

	setIfNotEmpty(&cfg.Cache.Backend, fc.Cache.Backend)
	if d, err := time.ParseDuration(fc.Cache.TTL); err == nil && fc.Cache.TTL != "" {
		cfg.Cache.TTL = d
	}
	setIfNotEmpty(&cfg.Cache.RedisAddr, fc.Cache.RedisAddr)
	setIfNotEmpty(&cfg.Cache.RedisPassword, fc.Cache.RedisPassword)
	if fc.Cache.RedisDB != nil {
		cfg.Cache.RedisDB = *fc.Cache.RedisDB
	}

	if fc.OTel.Enabled != nil {
		cfg.OTel.Enabled = *fc.OTel.Enabled
	}
	setIfNotEmpty(&cfg.OTel.Exporter, fc.OTel.Exporter)
	setIfNotEmpty(&cfg.OTel.Endpoint, fc.OTel.Endpoint)
	if fc.OTel.SamplingRate != nil {
		cfg.OTel.SamplingRate = *fc.OTel.SamplingRate
	}
	setIfNotEmpty(&cfg.OTel.Environment, fc.OTel.Environment)
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = ParseString("NACEX_LOG_LEVEL", cfg.LogLevel)
	cfg.SourcePath = ParseString("NACEX_SOURCE", cfg.SourcePath)
	cfg.DataDir = ParseString("NACEX_DATA_DIR", cfg.DataDir)
	cfg.DBPath = ParseString("NACEX_DB_PATH", cfg.DBPath)
	cfg.RunlogPath = ParseString("NACEX_RUNLOG_PATH", cfg.RunlogPath)
	cfg.Listen = ParseString("NACEX_LISTEN", cfg.Listen)
	cfg.APIToken = ParseString("NACEX_API_TOKEN", cfg.APIToken)
	cfg.TrustedProxies = ParseStringSlice("NACEX_TRUSTED_PROXIES", cfg.TrustedProxies)
	cfg.RequestsPerMinute = ParseInt("NACEX_REQUESTS_PER_MINUTE", cfg.RequestsPerMinute)

	cfg.WatchSource = ParseBool("NACEX_WATCH", cfg.WatchSource)
	cfg.WatchDebounce = ParseDuration("NACEX_WATCH_DEBOUNCE", cfg.WatchDebounce)
	cfg.IdempotencyTTL = ParseDuration("NACEX_IDEMPOTENCY_TTL", cfg.IdempotencyTTL)

	cfg.Profile.Sections = ParseInt("NACEX_PROFILE_SECTIONS", cfg.Profile.Sections)
	cfg.Profile.Divisions = ParseInt("NACEX_PROFILE_DIVISIONS", cfg.Profile.Divisions)
	cfg.Profile.Groups = ParseInt("NACEX_PROFILE_GROUPS", cfg.Profile.Groups)
	cfg.Profile.Classes = ParseInt("NACEX_PROFILE_CLASSES", cfg.Profile.Classes)

	cfg.Cache.Backend = ParseString("NACEX_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = ParseDuration("NACEX_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.RedisAddr = ParseString("NACEX_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString("NACEX_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt("NACEX_REDIS_DB", cfg.Cache.RedisDB)

	cfg.OTel.Enabled = ParseBool("NACEX_OTEL_ENABLED", cfg.OTel.Enabled)
	cfg.OTel.Exporter = ParseString("NACEX_OTEL_EXPORTER", cfg.OTel.Exporter)
	cfg.OTel.Endpoint = ParseString("NACEX_OTEL_ENDPOINT", cfg.OTel.Endpoint)
	cfg.OTel.SamplingRate = ParseFloat("NACEX_OTEL_SAMPLING_RATE", cfg.OTel.SamplingRate)
	cfg.OTel.Environment = ParseString("NACEX_OTEL_ENVIRONMENT", cfg.OTel.Environment)
}

// Validate rejects configurations the service cannot start with.
func Validate(cfg AppConfig) error {
	if cfg.SourcePath == "" {
		return fmt.Errorf("sourcePath is required (NACEX_SOURCE)")
	}
	if cfg.Listen == "" {
		return fmt.Errorf("listen address is empty")
	}
	switch cfg.Cache.Backend {
	case "memory", "none":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend redis requires redisAddr (NACEX_REDIS_ADDR)")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (memory, redis, none)", cfg.Cache.Backend)
	}
	if cfg.OTel.Enabled {
		if cfg.OTel.Endpoint == "" {
			return fmt.Errorf("otel enabled but endpoint is empty (NACEX_OTEL_ENDPOINT)")
		}
		switch cfg.OTel.Exporter {
		case "grpc", "http":
		default:
			return fmt.Errorf("unknown otel exporter %q (grpc, http)", cfg.OTel.Exporter)
		}
	}
	if cfg.RequestsPerMinute <= 0 {
		return fmt.Errorf("requestsPerMinute must be positive")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	return nil
}
