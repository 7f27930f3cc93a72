package progspec

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the progspec engine and binaries.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.progspec/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.progspec/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Logging
	LogLevel  string `json:"log_level" yaml:"log_level"`   // debug, info, warn, error
	LogFormat string `json:"log_format" yaml:"log_format"` // json or text

	// HTTP server
	Addr          string `json:"addr" yaml:"addr"`
	APIKey        string `json:"api_key" yaml:"api_key"`
	CORSOrigins   string `json:"cors_origins" yaml:"cors_origins"` // comma-separated, empty allows none
	MaxUploadSize int64  `json:"max_upload_size" yaml:"max_upload_size"`

	// Ingestion
	IngestConcurrency int `json:"ingest_concurrency" yaml:"ingest_concurrency"` // max documents parsed in parallel by IngestAll

	// ExportDir is where the CLI writes workbooks when --out is a bare name.
	ExportDir string `json:"export_dir" yaml:"export_dir"`
}

// DefaultConfig returns a Config with sensible defaults.
// Database is stored in ~/.progspec/progspec.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:            "progspec",
		StorageDir:        "home",
		LogLevel:          "info",
		LogFormat:         "json",
		Addr:              ":8080",
		MaxUploadSize:     32 << 20,
		IngestConcurrency: 4,
		ExportDir:         ".",
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if
// path is non-empty), applies PROGSPEC_* environment overrides and validates
// the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PROGSPEC_DB_PATH":      &c.DBPath,
		"PROGSPEC_DB_NAME":      &c.DBName,
		"PROGSPEC_STORAGE_DIR":  &c.StorageDir,
		"PROGSPEC_LOG_LEVEL":    &c.LogLevel,
		"PROGSPEC_LOG_FORMAT":   &c.LogFormat,
		"PROGSPEC_ADDR":         &c.Addr,
		"PROGSPEC_API_KEY":      &c.APIKey,
		"PROGSPEC_CORS_ORIGINS": &c.CORSOrigins,
		"PROGSPEC_EXPORT_DIR":   &c.ExportDir,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("PROGSPEC_INGEST_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PROGSPEC_INGEST_CONCURRENCY=%q", ErrInvalidConfig, v)
		}
		c.IngestConcurrency = n
	}
	if v := os.Getenv("PROGSPEC_MAX_UPLOAD_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: PROGSPEC_MAX_UPLOAD_SIZE=%q", ErrInvalidConfig, v)
		}
		c.MaxUploadSize = n
	}
	return nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.StorageDir {
	case "", "home", "local", "cwd":
	default:
		return fmt.Errorf("%w: storage_dir %q", ErrInvalidConfig, c.StorageDir)
	}
	if c.IngestConcurrency < 0 {
		return fmt.Errorf("%w: ingest_concurrency must not be negative", ErrInvalidConfig)
	}
	if c.MaxUploadSize < 0 {
		return fmt.Errorf("%w: max_upload_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "progspec"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".progspec", name+".db")
	}
}
