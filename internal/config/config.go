// Package config loads server settings from defaults, an optional YAML file
// and SFMOBILE_MCP_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
)

// Store backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const (
	EnvPrefix = "SFMOBILE_MCP_"
	// EnvConfigFile names the optional YAML file.
	EnvConfigFile = EnvPrefix + "CONFIG"

	DefaultStoreBackend       = BackendFile
	DefaultRedisAddr          = "localhost:6379"
	DefaultRedisPrefix        = "sfmobile-mcp:"
	DefaultLogLevel           = "info"
	DefaultCommandTimeout     = 10 * time.Minute
	DefaultReviewThreshold    = 80
	DefaultIterationWarnAfter = 5

	defaultDir = ".sfmobile-mcp"
)

var (
	ErrInvalidBackend         = errors.New("invalid store backend")
	ErrMissingStorePath       = errors.New("store path is required for the file backend")
	ErrMissingSQLitePath      = errors.New("sqlite path is required for the sqlite backend")
	ErrMissingRedisAddr       = errors.New("redis address is required for the redis backend")
	ErrInvalidHistoryLimit    = errors.New("history limit must not be negative")
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrInvalidCommandTimeout  = errors.New("command timeout must be positive")
	ErrInvalidReviewThreshold = errors.New("review threshold must be between 0 and 100")
	ErrInvalidIterationWarn   = errors.New("iteration warning threshold must not be negative")
)

// Config holds the server settings
type Config struct {
	// Checkpoint store
	StoreBackend string `yaml:"storeBackend"`
	StorePath    string `yaml:"storePath"`
	SQLitePath   string `yaml:"sqlitePath"`
	RedisAddr    string `yaml:"redisAddr"`
	RedisPrefix  string `yaml:"redisPrefix"`
	HistoryLimit int    `yaml:"historyLimit"`

	LogLevel string `yaml:"logLevel"`

	// Workflows
	CommandTimeout     time.Duration `yaml:"commandTimeout"`
	ReviewThreshold    float64       `yaml:"reviewThreshold"`
	IterationWarnAfter int           `yaml:"iterationWarnAfter"`
	ProjectRoot        string        `yaml:"projectRoot"`
}

// Default returns the configuration used when nothing is overridden. Files
// live under ~/.sfmobile-mcp, or the temp dir if there is no home.
func Default() *Config {
	base := os.TempDir()
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		base = home
	}
	dir := filepath.Join(base, defaultDir)

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		StoreBackend:       DefaultStoreBackend,
		StorePath:          filepath.Join(dir, "workflow-state.json"),
		SQLitePath:         filepath.Join(dir, "workflow-state.db"),
		RedisAddr:          DefaultRedisAddr,
		RedisPrefix:        DefaultRedisPrefix,
		HistoryLimit:       checkpoints.DefaultHistoryLimit,
		LogLevel:           DefaultLogLevel,
		CommandTimeout:     DefaultCommandTimeout,
		ReviewThreshold:    DefaultReviewThreshold,
		IterationWarnAfter: DefaultIterationWarnAfter,
		ProjectRoot:        wd,
	}
}

// Load builds the configuration from defaults, the file named by
// SFMOBILE_MCP_CONFIG and the environment, then validates it.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path. Keys missing from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadEnv overlays SFMOBILE_MCP_* variables. Malformed numbers and
// durations are errors.
func (c *Config) LoadEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setString("STORE_BACKEND", &c.StoreBackend)
	setString("STORE_PATH", &c.StorePath)
	setString("SQLITE_PATH", &c.SQLitePath)
	setString("REDIS_ADDR", &c.RedisAddr)
	setString("REDIS_PREFIX", &c.RedisPrefix)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("PROJECT_ROOT", &c.ProjectRoot)

	setInt := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setInt("HISTORY_LIMIT", &c.HistoryLimit)
	setInt("ITERATION_WARN_AFTER", &c.IterationWarnAfter)

	if v := os.Getenv(EnvPrefix + "REVIEW_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREVIEW_THRESHOLD: %w", EnvPrefix, err))
		} else {
			c.ReviewThreshold = f
		}
	}
	if v := os.Getenv(EnvPrefix + "COMMAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCOMMAND_TIMEOUT: %w", EnvPrefix, err))
		} else {
			c.CommandTimeout = d
		}
	}
	return errors.Join(errs...)
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.StoreBackend) {
	case BackendFile:
		if c.StorePath == "" {
			errs = append(errs, ErrMissingStorePath)
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, ErrMissingSQLitePath)
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, ErrMissingRedisAddr)
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidBackend, c.StoreBackend))
	}

	if c.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidHistoryLimit, c.HistoryLimit))
	}
	if !log.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, ErrInvalidCommandTimeout)
	}
	if c.ReviewThreshold < 0 || c.ReviewThreshold > 100 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidReviewThreshold, c.ReviewThreshold))
	}
	if c.IterationWarnAfter < 0 {
		errs = append(errs, ErrInvalidIterationWarn)
	}
	return errors.Join(errs...)
}

// Backend returns the normalized store backend name.
func (c *Config) Backend() string {
	return strings.ToLower(c.StoreBackend)
}
