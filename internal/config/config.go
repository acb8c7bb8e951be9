// Package config provides unified configuration for the partwise router.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the partwise router service.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Routing configuration
	Routing RoutingConfig `json:"routing" yaml:"routing"`

	// Archive configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP address for the router API
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// RoutingConfig holds routing and partition creation configuration.
type RoutingConfig struct {
	// CatalogPath is the path to the catalog database
	CatalogPath string `json:"catalog_path" yaml:"catalog_path"`

	// AutoCreate enables on-demand partition creation
	AutoCreate bool `json:"auto_create" yaml:"auto_create"`

	// IntervalWidth is the width of auto-created partitions
	// (raw units: integer step for int64, microseconds for timestamps)
	IntervalWidth int64 `json:"interval_width" yaml:"interval_width"`
}

// ArchiveConfig holds snapshot archive configuration.
type ArchiveConfig struct {
	// Type is the archive store type: memory, s3
	Type string `json:"type" yaml:"type"`

	// Prefix is the key prefix snapshots are written under
	Prefix string `json:"prefix" yaml:"prefix"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 archive configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/partwise",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Routing: RoutingConfig{
			CatalogPath:   "",
			AutoCreate:    true,
			IntervalWidth: 1000,
		},
		Archive: ArchiveConfig{
			Type:   "memory",
			Prefix: "snapshots/v1",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/partwise"
	}

	if c.Routing.CatalogPath == "" {
		c.Routing.CatalogPath = filepath.Join(c.DataDir, "catalog.db")
	}

	if c.Archive.Prefix == "" {
		c.Archive.Prefix = "snapshots/v1"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Routing.AutoCreate && c.Routing.IntervalWidth <= 0 {
		return fmt.Errorf("routing.interval_width must be positive when auto_create is enabled, got %d", c.Routing.IntervalWidth)
	}

	if c.Archive.Type != "memory" && c.Archive.Type != "s3" {
		return fmt.Errorf("invalid archive type: %s (must be memory or s3)", c.Archive.Type)
	}

	if c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when archive type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the PARTWISE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PARTWISE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP configuration
	if v := os.Getenv("PARTWISE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("PARTWISE_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("PARTWISE_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = d
		}
	}

	// Routing configuration
	if v := os.Getenv("PARTWISE_CATALOG_PATH"); v != "" {
		cfg.Routing.CatalogPath = v
	}
	if v := os.Getenv("PARTWISE_AUTO_CREATE"); v != "" {
		cfg.Routing.AutoCreate = v == "true" || v == "1"
	}
	if v := os.Getenv("PARTWISE_INTERVAL_WIDTH"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Routing.IntervalWidth)
	}

	// Archive configuration
	if v := os.Getenv("PARTWISE_ARCHIVE_TYPE"); v != "" {
		cfg.Archive.Type = v
	}
	if v := os.Getenv("PARTWISE_ARCHIVE_PREFIX"); v != "" {
		cfg.Archive.Prefix = v
	}
	if v := os.Getenv("PARTWISE_S3_BUCKET"); v != "" {
		cfg.Archive.S3.Bucket = v
	}
	if v := os.Getenv("PARTWISE_S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := os.Getenv("PARTWISE_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.Routing.CatalogPath),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
