package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth for the notegest API
	APIKey string

	// Remote host. When HostURL is empty the server serves FixturePath from
	// an in-memory host instead.
	HostURL     string
	HostAPIKey  string
	HostHTTP2   bool
	HostTimeout time.Duration
	FixturePath string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Job state
	JobTTL time.Duration

	// Export
	IncludeImageBytes bool
	OutputDir         string

	// Commit latency window
	StatsWindow time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("NOTEGEST_API_KEY"),

		HostURL:     os.Getenv("HOST_URL"),
		HostAPIKey:  os.Getenv("HOST_API_KEY"),
		HostHTTP2:   envBool("HOST_HTTP2", false),
		HostTimeout: envDuration("HOST_TIMEOUT", 30*time.Second),
		FixturePath: envOr("FIXTURE_PATH", "fixtures/sample.yaml"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		IncludeImageBytes: envBool("INCLUDE_IMAGE_BYTES", false),
		OutputDir:         os.Getenv("OUTPUT_DIR"),

		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.HostTimeout <= 0 {
		cfg.HostTimeout = 30 * time.Second
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}

	return cfg
}

// Validate checks what every binary needs: somewhere to read a notebook from.
func (c Config) Validate() error {
	if c.HostURL == "" && c.FixturePath == "" {
		return fmt.Errorf("HOST_URL or FIXTURE_PATH is required")
	}
	if c.HostURL != "" && c.HostAPIKey == "" {
		return fmt.Errorf("HOST_API_KEY is required when HOST_URL is set")
	}
	return nil
}

// ValidateServer additionally requires the API key the HTTP server checks.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("NOTEGEST_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
