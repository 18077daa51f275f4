package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Auth     AuthConfig     `yaml:"auth"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Plan     PlanConfig     `yaml:"plan"`
	Streak   StreakConfig   `yaml:"streak"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	// GenerationBurst and GenerationRefill configure the token bucket in front
	// of the LLM-backed endpoints.
	GenerationBurst  int      `yaml:"generation_burst"`
	GenerationRefill Duration `yaml:"generation_refill"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig contains text-generation service settings.
// An empty API key for the selected provider switches the planner to degraded mode.
type LLMConfig struct {
	Provider     string `yaml:"provider"` // cohere | openai
	CohereAPIKey string `yaml:"-"`        // env-only, never in YAML
	OpenAIAPIKey string `yaml:"-"`        // env-only, never in YAML
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	ClientName   string `yaml:"client_name"`

	GenerateTemperature    float64 `yaml:"generate_temperature"`
	RecalculateTemperature float64 `yaml:"recalculate_temperature"`
	ChatTemperature        float64 `yaml:"chat_temperature"`
	MaxTokens              int     `yaml:"max_tokens"`

	GenerateMockDelay    Duration `yaml:"generate_mock_delay"`
	RecalculateMockDelay Duration `yaml:"recalculate_mock_delay"`
	ChatMockDelay        Duration `yaml:"chat_mock_delay"`
}

// APIKey returns the credential of the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.CohereAPIKey
}

// CheckoutConfig contains payment provider settings.
type CheckoutConfig struct {
	APIURL       string   `yaml:"api_url"`
	PayURL       string   `yaml:"pay_url"`
	ClientID     string   `yaml:"-"` // env-only, never in YAML
	ClientSecret string   `yaml:"-"` // env-only, never in YAML
	OfferID      string   `yaml:"offer_id"`
	OfferSearch  string   `yaml:"offer_search"`
	Timeout      Duration `yaml:"timeout"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// ArchiveConfig contains S3-compatible plan archive settings.
// An empty bucket disables archiving.
type ArchiveConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	UseSSL    *bool    `yaml:"use_ssl"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	URLExpiry Duration `yaml:"url_expiry"`
}

// PlanConfig contains plan progression settings.
type PlanConfig struct {
	// UnlockThreshold is the completion ratio of a quarter that unlocks the next one.
	UnlockThreshold float64 `yaml:"unlock_threshold"`
}

// StreakConfig contains streak tracking settings.
type StreakConfig struct {
	// Timezone decides where calendar days begin. Empty means the server's local zone.
	Timezone string `yaml:"timezone"`
}

// Location resolves the configured timezone.
func (c StreakConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	// DraftRetention is how long an untouched onboarding draft is kept.
	DraftRetention     Duration `yaml:"draft_retention"`
	DraftSweepInterval Duration `yaml:"draft_sweep_interval"`
	// ControllerSweepInterval is how often idle dashboard controllers are evicted.
	ControllerSweepInterval Duration `yaml:"controller_sweep_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// A .env file in the working directory (or VISION_ENV_FILE) is loaded into the
// environment first; variables already set are not overridden.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnv("VISION_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := newDefaults()

	// Determine config path
	configPath := getEnv("VISION_CONFIG_PATH", "config/vision.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	// Load YAML file (file must exist for this function)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      Duration(30 * time.Second),
			WriteTimeout:     Duration(120 * time.Second),
			ShutdownTimeout:  Duration(15 * time.Second),
			GenerationBurst:  10,
			GenerationRefill: Duration(6 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/vision.db",
		},
		LLM: LLMConfig{
			Provider:               "cohere",
			Model:                  "command-r-08-2024",
			BaseURL:                "https://api.cohere.com",
			ClientName:             "Vision2026",
			GenerateTemperature:    0.3,
			RecalculateTemperature: 0.4,
			ChatTemperature:        0.7,
			MaxTokens:              4000,
			GenerateMockDelay:      Duration(3 * time.Second),
			RecalculateMockDelay:   Duration(2 * time.Second),
			ChatMockDelay:          Duration(1 * time.Second),
		},
		Checkout: CheckoutConfig{
			APIURL:      "https://api.cakto.com.br",
			PayURL:      "https://pay.cakto.com.br",
			OfferSearch: "Vision",
			Timeout:     Duration(15 * time.Second),
		},
		Archive: ArchiveConfig{
			URLExpiry: Duration(15 * time.Minute),
		},
		Plan: PlanConfig{
			UnlockThreshold: 0.7,
		},
		Worker: WorkerConfig{
			DraftRetention:          Duration(30 * 24 * time.Hour),
			DraftSweepInterval:      Duration(time.Hour),
			ControllerSweepInterval: Duration(5 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing file is OK; use defaults
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("VISION_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VISION_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("VISION_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("VISION_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("VISION_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// LLM (COHERE_API_KEY / OPENAI_API_KEY are provider conventions)
	if v := os.Getenv("COHERE_API_KEY"); v != "" {
		cfg.LLM.CohereAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAIAPIKey = v
	}
	if v := os.Getenv("VISION_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("VISION_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("VISION_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	// Checkout
	if v := os.Getenv("CAKTO_CLIENT_ID"); v != "" {
		cfg.Checkout.ClientID = v
	}
	if v := os.Getenv("CAKTO_CLIENT_SECRET"); v != "" {
		cfg.Checkout.ClientSecret = v
	}
	if v := os.Getenv("CAKTO_API_URL"); v != "" {
		cfg.Checkout.APIURL = v
	}
	if v := os.Getenv("CAKTO_OFFER_ID"); v != "" {
		cfg.Checkout.OfferID = v
	}

	// Auth
	if v := os.Getenv("VISION_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Archive
	if v := os.Getenv("VISION_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("VISION_S3_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("VISION_S3_REGION"); v != "" {
		cfg.Archive.Region = v
	}
	if v := os.Getenv("VISION_S3_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("VISION_S3_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("VISION_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Archive.UseSSL = &useSSL
	}

	// Plan / streak
	if v := os.Getenv("VISION_UNLOCK_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Plan.UnlockThreshold = f
		}
	}
	if v := os.Getenv("VISION_STREAK_TIMEZONE"); v != "" {
		cfg.Streak.Timezone = v
	}

	// Log
	if v := os.Getenv("VISION_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VISION_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// Missing LLM credentials are allowed: the planner runs in degraded mode.
// In dev mode (VISION_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if c.LLM.Provider != "cohere" && c.LLM.Provider != "openai" {
		return fmt.Errorf("llm.provider must be cohere or openai, got %q", c.LLM.Provider)
	}
	if c.Plan.UnlockThreshold < 0 || c.Plan.UnlockThreshold > 1 {
		return fmt.Errorf("plan.unlock_threshold must be between 0 and 1, got %v", c.Plan.UnlockThreshold)
	}
	if c.Worker.DraftSweepInterval <= 0 || c.Worker.ControllerSweepInterval <= 0 {
		return errors.New("worker sweep intervals must be positive")
	}
	if _, err := c.Streak.Location(); err != nil {
		return fmt.Errorf("streak.timezone: %w", err)
	}

	// Dev mode bypasses API key validation
	if os.Getenv("VISION_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("VISION_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
