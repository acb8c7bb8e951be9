package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestResolveDerivesCatalogPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/partwise"
	cfg.Resolve()
	want := filepath.Join("/var/lib/partwise", "catalog.db")
	if cfg.Routing.CatalogPath != want {
		t.Fatalf("expected %s, got %s", want, cfg.Routing.CatalogPath)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero interval with auto create", func(c *Config) { c.Routing.IntervalWidth = 0 }},
		{"negative interval", func(c *Config) { c.Routing.IntervalWidth = -5 }},
		{"unknown archive type", func(c *Config) { c.Archive.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Archive.Type = "s3"; c.Archive.S3.Bucket = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateAllowsZeroIntervalWithoutAutoCreate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	cfg.Routing.AutoCreate = false
	cfg.Routing.IntervalWidth = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /tmp/pw
http:
  addr: ":9000"
  read_timeout: 10s
routing:
  auto_create: false
  interval_width: 86400000000
archive:
  type: s3
  s3:
    bucket: pw-snapshots
    region: eu-west-1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.DataDir != "/tmp/pw" {
		t.Errorf("data_dir: got %s", cfg.DataDir)
	}
	if cfg.HTTP.Addr != ":9000" || cfg.HTTP.ReadTimeout != 10*time.Second {
		t.Errorf("http: got %+v", cfg.HTTP)
	}
	if cfg.Routing.AutoCreate || cfg.Routing.IntervalWidth != 86400000000 {
		t.Errorf("routing: got %+v", cfg.Routing)
	}
	if cfg.Archive.S3.Bucket != "pw-snapshots" {
		t.Errorf("archive: got %+v", cfg.Archive)
	}
	// Unset fields keep defaults.
	if cfg.HTTP.WriteTimeout != 60*time.Second {
		t.Errorf("write_timeout default lost: %v", cfg.HTTP.WriteTimeout)
	}
}

func TestLoadFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"data_dir": "/tmp/pw-json", "routing": {"interval_width": 500}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.DataDir != "/tmp/pw-json" || cfg.Routing.IntervalWidth != 500 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadFromFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PARTWISE_HTTP_ADDR", ":7070")
	t.Setenv("PARTWISE_AUTO_CREATE", "false")
	t.Setenv("PARTWISE_INTERVAL_WIDTH", "2500")
	t.Setenv("PARTWISE_S3_BUCKET", "env-bucket")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.HTTP.Addr != ":7070" {
		t.Errorf("http addr: got %s", cfg.HTTP.Addr)
	}
	if cfg.Routing.AutoCreate {
		t.Error("auto_create should be disabled")
	}
	if cfg.Routing.IntervalWidth != 2500 {
		t.Errorf("interval_width: got %d", cfg.Routing.IntervalWidth)
	}
	if cfg.Archive.S3.Bucket != "env-bucket" {
		t.Errorf("s3 bucket: got %s", cfg.Archive.S3.Bucket)
	}
}
