package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	yamlContent := []byte(`
storage:
  data_dir: "/tmp/market/data"
  sqlite_path: "/tmp/market/market.db"
server:
  host: "127.0.0.1"
  port: 9000
  internal_token: "secret-token"
polygon:
  api_key: "pk-test"
  base_url: "https://api.polygon.io"
  timeout_seconds: 20
  requests_per_min: 5
jobs:
  max_seconds: 18
  fallback_burst: 6
  sleep_base: 0.25
  burst_sleep: 0.05
  precalc_burst: 12
  max_backfill_days: 3
  backfill_retries: 1
  auto_anchor_sample: 20
logging:
  level: "debug"
  format: "json"
`)

	path := filepath.Join(t.TempDir(), "market.yaml")
	if err := os.WriteFile(path, yamlContent, 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}

	// Clear any environment overrides that might interfere.
	for _, name := range []string{
		"DATA_DIR", "SQLITE_PATH", "POLYGON_API_KEY", "POLYGON_RPM",
		"INTERNAL_MAX_SECONDS", "INTERNAL_FALLBACK_BURST", "INTERNAL_SLEEP",
		"PRECALC_MAX_SECONDS", "PRECALC_BURST", "PRECALC_SLEEP",
		"MAX_BACKFILL_DAYS", "AUTO_BACKFILL_SAMPLE", "INTERNAL_API_TOKEN",
		"LOG_LEVEL",
	} {
		os.Unsetenv(name)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/market/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/market/data")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.InternalToken != "secret-token" {
		t.Errorf("Server.InternalToken = %q, want %q", cfg.Server.InternalToken, "secret-token")
	}
	if cfg.Polygon.APIKey != "pk-test" {
		t.Errorf("Polygon.APIKey = %q, want %q", cfg.Polygon.APIKey, "pk-test")
	}
	if cfg.Jobs.MaxSeconds != 18 {
		t.Errorf("Jobs.MaxSeconds = %v, want 18", cfg.Jobs.MaxSeconds)
	}
	if cfg.Jobs.FallbackBurst != 6 {
		t.Errorf("Jobs.FallbackBurst = %d, want 6", cfg.Jobs.FallbackBurst)
	}
	if cfg.Jobs.BackfillRetries != 1 {
		t.Errorf("Jobs.BackfillRetries = %d, want 1", cfg.Jobs.BackfillRetries)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	os.Unsetenv("INTERNAL_MAX_SECONDS")
	os.Unsetenv("POLYGON_RPM")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() on missing file returned error: %v", err)
	}

	def := Default()
	if cfg.Jobs.MaxSeconds != def.Jobs.MaxSeconds {
		t.Errorf("Jobs.MaxSeconds = %v, want default %v", cfg.Jobs.MaxSeconds, def.Jobs.MaxSeconds)
	}
	if cfg.Polygon.RequestsPerMin != def.Polygon.RequestsPerMin {
		t.Errorf("Polygon.RequestsPerMin = %d, want default %d", cfg.Polygon.RequestsPerMin, def.Polygon.RequestsPerMin)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POLYGON_API_KEY", "env-key")
	t.Setenv("INTERNAL_MAX_SECONDS", "12.5")
	t.Setenv("INTERNAL_FALLBACK_BURST", "4")
	t.Setenv("MAX_BACKFILL_DAYS", "7")
	t.Setenv("INTERNAL_API_TOKEN", "env-token")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Polygon.APIKey != "env-key" {
		t.Errorf("Polygon.APIKey = %q, want %q", cfg.Polygon.APIKey, "env-key")
	}
	if cfg.Jobs.MaxSeconds != 12.5 {
		t.Errorf("Jobs.MaxSeconds = %v, want 12.5", cfg.Jobs.MaxSeconds)
	}
	if cfg.Jobs.FallbackBurst != 4 {
		t.Errorf("Jobs.FallbackBurst = %d, want 4", cfg.Jobs.FallbackBurst)
	}
	if cfg.Jobs.MaxBackfillDays != 7 {
		t.Errorf("Jobs.MaxBackfillDays = %d, want 7", cfg.Jobs.MaxBackfillDays)
	}
	if cfg.Server.InternalToken != "env-token" {
		t.Errorf("Server.InternalToken = %q, want %q", cfg.Server.InternalToken, "env-token")
	}
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("INTERNAL_MAX_SECONDS", "not-a-number")
	t.Setenv("POLYGON_RPM", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	def := Default()
	if cfg.Jobs.MaxSeconds != def.Jobs.MaxSeconds {
		t.Errorf("garbage INTERNAL_MAX_SECONDS changed MaxSeconds to %v", cfg.Jobs.MaxSeconds)
	}
	if cfg.Polygon.RequestsPerMin != def.Polygon.RequestsPerMin {
		t.Errorf("empty POLYGON_RPM changed RequestsPerMin to %d", cfg.Polygon.RequestsPerMin)
	}
}
