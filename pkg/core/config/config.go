// Package config builds the process configuration once at startup. Components
// receive the values they need through constructors and never read the
// environment themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// LLMConfig selects the narrative model.
type LLMConfig struct {
	Provider     string `yaml:"provider"` // gemini or groq
	Model        string `yaml:"model"`
	GeminiAPIKey string `yaml:"-"`
	GroqAPIKey   string `yaml:"-"`
}

// Config is the full process configuration.
type Config struct {
	DatabaseURL string
	HTTPAddr    string

	FMPAPIKey  string
	FMPBaseURL string

	AlphaVantageAPIKey  string
	AlphaVantageBaseURL string

	EdgarUserAgent string
	GCSBucket      string

	LLM LLMConfig

	// Retry policy for ingestion jobs.
	MaxAttempts int
	RetryDelay  time.Duration

	// Wall-clock budget for one pipeline run.
	RunTimeout time.Duration

	// Cron expression for the filing detection sweep.
	SweepSchedule string
	WorkerSlots   int
}

// Load reads configuration from the environment with conservative defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		FMPAPIKey:           os.Getenv("FMP_API_KEY"),
		FMPBaseURL:          getenv("FMP_BASE_URL", "https://financialmodelingprep.com"),
		AlphaVantageAPIKey:  os.Getenv("ALPHAVANTAGE_API_KEY"),
		AlphaVantageBaseURL: getenv("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
		EdgarUserAgent:      getenv("EDGAR_USER_AGENT", "ThesisEngine research@example.com"),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
		LLM: LLMConfig{
			Provider:     getenv("LLM_PROVIDER", "gemini"),
			Model:        getenv("LLM_MODEL", "gemini-2.0-flash"),
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GroqAPIKey:   os.Getenv("GROQ_API_KEY"),
		},
		MaxAttempts:   getint("INGEST_MAX_ATTEMPTS", 3),
		RetryDelay:    getduration("INGEST_RETRY_DELAY", 5*time.Minute),
		RunTimeout:    getduration("INGEST_RUN_TIMEOUT", 5*time.Minute),
		SweepSchedule: getenv("SWEEP_SCHEDULE", "0 * * * *"),
		WorkerSlots:   getint("WORKER_SLOTS", 4),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}

// modelsFile is the shape of the optional config/models.yaml override.
type modelsFile struct {
	LLM LLMConfig `yaml:"llm"`
}

// LoadModels applies the model selection file on top of the env-derived
// config. A missing file is not an error; the env defaults stand.
func (c *Config) LoadModels(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read models file: %w", err)
	}

	var mf modelsFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("parse models file: %w", err)
	}
	if mf.LLM.Provider != "" {
		c.LLM.Provider = mf.LLM.Provider
	}
	if mf.LLM.Model != "" {
		c.LLM.Model = mf.LLM.Model
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
