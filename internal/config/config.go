package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the market data service.
type Config struct {
	Storage Storage    `yaml:"storage"`
	Server  Server     `yaml:"server"`
	Polygon Polygon    `yaml:"polygon"`
	Jobs    JobsConfig `yaml:"jobs"`
	Logging Logging    `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration for the internal API.
type Server struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	InternalToken string `yaml:"internal_token"`
}

// Polygon holds credentials and limits for the Polygon data vendor.
type Polygon struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RequestsPerMin int    `yaml:"requests_per_min"`
}

// JobsConfig bounds the time-boxed ingestion and precompute jobs. Every
// invocation is expected to finish inside MaxSeconds; the remaining knobs
// shape how much per-symbol fallback and precalc work fits in there.
type JobsConfig struct {
	MaxSeconds       float64 `yaml:"max_seconds"`
	FallbackBurst    int     `yaml:"fallback_burst"`
	SleepBase        float64 `yaml:"sleep_base"`  // seconds between fallback calls
	BurstSleep       float64 `yaml:"burst_sleep"` // seconds between precalc bursts
	PrecalcBurst     int     `yaml:"precalc_burst"`
	MaxBackfillDays  int     `yaml:"max_backfill_days"`
	BackfillRetries  int     `yaml:"backfill_retries"` // in-place retries for a partial day
	AutoAnchorSample int     `yaml:"auto_anchor_sample"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config with safe defaults for a short scheduled
// invocation against the Polygon free tier.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/market.db",
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Polygon: Polygon{
			BaseURL:        "https://api.polygon.io",
			TimeoutSeconds: 30,
			RequestsPerMin: 5,
		},
		Jobs: JobsConfig{
			MaxSeconds:       25,
			FallbackBurst:    10,
			SleepBase:        0.20,
			BurstSleep:       0.10,
			PrecalcBurst:     8,
			MaxBackfillDays:  5,
			BackfillRetries:  2,
			AutoAnchorSample: 40,
		},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides. A missing
// file is not an error: defaults plus env vars apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.Polygon.APIKey = v
	}
	if v := os.Getenv("POLYGON_BASE_URL"); v != "" {
		cfg.Polygon.BaseURL = v
	}
	if v, ok := envInt("POLYGON_RPM"); ok {
		cfg.Polygon.RequestsPerMin = v
	}

	if v, ok := envFloat("INTERNAL_MAX_SECONDS"); ok {
		cfg.Jobs.MaxSeconds = v
	}
	if v, ok := envInt("INTERNAL_FALLBACK_BURST"); ok {
		cfg.Jobs.FallbackBurst = v
	}
	if v, ok := envFloat("INTERNAL_SLEEP"); ok {
		cfg.Jobs.SleepBase = v
	}
	if v, ok := envFloat("PRECALC_MAX_SECONDS"); ok {
		cfg.Jobs.MaxSeconds = v
	}
	if v, ok := envInt("PRECALC_BURST"); ok {
		cfg.Jobs.PrecalcBurst = v
	}
	if v, ok := envFloat("PRECALC_SLEEP"); ok {
		cfg.Jobs.BurstSleep = v
	}
	if v, ok := envInt("MAX_BACKFILL_DAYS"); ok {
		cfg.Jobs.MaxBackfillDays = v
	}
	if v, ok := envInt("AUTO_BACKFILL_SAMPLE"); ok {
		cfg.Jobs.AutoAnchorSample = v
	}

	if v := os.Getenv("INTERNAL_API_TOKEN"); v != "" {
		cfg.Server.InternalToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
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

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
