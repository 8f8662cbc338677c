package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Invalidation strategies for the parsed-file cache.
const (
	InvalidateManual      = "manual"
	InvalidateTimestamp   = "timestamp"
	InvalidateContentHash = "content-hash"
)

// Default limits. The file caps keep project-wide operations inside their
// timeout budgets; they are documented approximations, not guarantees of
// exhaustive coverage.
const (
	DefaultParsedFileCacheSize = 1000
	DefaultSymbolCacheSize     = 10000
	DefaultCacheTTL            = 24 * time.Hour
	DefaultConcurrency         = 5
	DefaultMaxProjectFiles     = 200
	DefaultMemoryCeilingMB     = 512
	DefaultMaxFileSize         = 4 * 1024 * 1024
)

type Config struct {
	Project     Project     `toml:"project"`
	Cache       Cache       `toml:"cache"`
	Timeouts    Timeouts    `toml:"timeouts"`
	Performance Performance `toml:"performance"`
	Scope       Scope       `toml:"scope"`
}

type Project struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

type Cache struct {
	ParsedFileEntries int    `toml:"parsed_file_entries"`
	SymbolEntries     int    `toml:"symbol_entries"`
	TTLSeconds        int    `toml:"ttl_seconds"`
	Invalidation      string `toml:"invalidation"` // manual | timestamp | content-hash
	Dir               string `toml:"dir"`          // persistent analysis cache directory
	WatchMode         bool   `toml:"watch_mode"`
	WatchDebounceMs   int    `toml:"watch_debounce_ms"`
}

// Timeouts holds per-operation-class budgets in milliseconds.
type Timeouts struct {
	SingleFileMs      int `toml:"single_file_ms"`
	SymbolSearchMs    int `toml:"symbol_search_ms"`
	ProjectAnalysisMs int `toml:"project_analysis_ms"`
	ImpactAnalysisMs  int `toml:"impact_analysis_ms"`
}

type Performance struct {
	Concurrency     int   `toml:"concurrency"`
	MaxProjectFiles int   `toml:"max_project_files"`
	MemoryCeilingMB int64 `toml:"memory_ceiling_mb"`
	MaxFileSize     int64 `toml:"max_file_size"`
}

type Scope struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Project: Project{Root: cwd},
		Cache: Cache{
			ParsedFileEntries: DefaultParsedFileCacheSize,
			SymbolEntries:     DefaultSymbolCacheSize,
			TTLSeconds:        int(DefaultCacheTTL.Seconds()),
			Invalidation:      InvalidateTimestamp,
			WatchMode:         false,
			WatchDebounceMs:   300,
		},
		Timeouts: Timeouts{
			SingleFileMs:      10_000,
			SymbolSearchMs:    15_000,
			ProjectAnalysisMs: 60_000,
			ImpactAnalysisMs:  30_000,
		},
		Performance: Performance{
			Concurrency:     DefaultConcurrency,
			MaxProjectFiles: DefaultMaxProjectFiles,
			MemoryCeilingMB: DefaultMemoryCeilingMB,
			MaxFileSize:     DefaultMaxFileSize,
		},
		Scope: Scope{
			Exclude: []string{
				"**/node_modules/**",
				"**/dist/**",
				"**/build/**",
				"**/out/**",
				"**/.git/**",
				"**/coverage/**",
				"**/*.min.js",
				"**/vendor/**",
			},
		},
	}
}

// Load reads the TOML config at path, layered over defaults, then applies
// environment overrides. A missing file is not an error. The result is read
// once at process start and treated as immutable afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Project.Root != "" {
		abs, err := filepath.Abs(cfg.Project.Root)
		if err != nil {
			return nil, fmt.Errorf("resolve project root %q: %w", cfg.Project.Root, err)
		}
		cfg.Project.Root = abs
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.Project.Root, ".sca-cache")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := envInt("SCA_MEMORY_CEILING_MB"); ok {
		cfg.Performance.MemoryCeilingMB = int64(v)
	}
	if v, ok := envInt("SCA_CACHE_TTL_SECONDS"); ok {
		cfg.Cache.TTLSeconds = v
	}
	if v, ok := envInt("SCA_SINGLE_FILE_TIMEOUT_MS"); ok {
		cfg.Timeouts.SingleFileMs = v
	}
	if v, ok := envInt("SCA_PROJECT_TIMEOUT_MS"); ok {
		cfg.Timeouts.ProjectAnalysisMs = v
	}
	if v := os.Getenv("SCA_CACHE_INVALIDATION"); v != "" {
		cfg.Cache.Invalidation = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate rejects values the runtime cannot operate with.
func (c *Config) Validate() error {
	switch c.Cache.Invalidation {
	case InvalidateManual, InvalidateTimestamp, InvalidateContentHash:
	default:
		return fmt.Errorf("cache.invalidation must be one of manual, timestamp, content-hash; got %q", c.Cache.Invalidation)
	}
	if c.Cache.ParsedFileEntries <= 0 {
		return fmt.Errorf("cache.parsed_file_entries must be positive, got %d", c.Cache.ParsedFileEntries)
	}
	if c.Cache.SymbolEntries <= 0 {
		return fmt.Errorf("cache.symbol_entries must be positive, got %d", c.Cache.SymbolEntries)
	}
	if c.Performance.Concurrency <= 0 {
		return fmt.Errorf("performance.concurrency must be positive, got %d", c.Performance.Concurrency)
	}
	if c.Performance.MemoryCeilingMB <= 0 {
		return fmt.Errorf("performance.memory_ceiling_mb must be positive, got %d", c.Performance.MemoryCeilingMB)
	}
	return nil
}

// CacheTTL returns the persistent-cache time-to-live as a Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// TimeoutFor returns the budget for an operation class.
func (c *Config) TimeoutFor(class string) time.Duration {
	ms := c.Timeouts.SingleFileMs
	switch class {
	case "symbol-search":
		ms = c.Timeouts.SymbolSearchMs
	case "project-analysis":
		ms = c.Timeouts.ProjectAnalysisMs
	case "impact-analysis":
		ms = c.Timeouts.ImpactAnalysisMs
	}
	return time.Duration(ms) * time.Millisecond
}
