package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// Helper to clear all config-related env vars
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"VISION_PORT",
		"VISION_READ_TIMEOUT",
		"VISION_WRITE_TIMEOUT",
		"VISION_SHUTDOWN_TIMEOUT",
		"VISION_DB_PATH",
		"COHERE_API_KEY",
		"OPENAI_API_KEY",
		"VISION_LLM_PROVIDER",
		"VISION_LLM_MODEL",
		"VISION_LLM_BASE_URL",
		"CAKTO_CLIENT_ID",
		"CAKTO_CLIENT_SECRET",
		"CAKTO_API_URL",
		"CAKTO_OFFER_ID",
		"VISION_API_KEY",
		"VISION_ARCHIVE_BUCKET",
		"VISION_S3_ENDPOINT",
		"VISION_S3_REGION",
		"VISION_S3_ACCESS_KEY",
		"VISION_S3_SECRET_KEY",
		"VISION_S3_USE_SSL",
		"VISION_UNLOCK_THRESHOLD",
		"VISION_STREAK_TIMEZONE",
		"VISION_LOG_LEVEL",
		"VISION_LOG_FORMAT",
		"VISION_CONFIG_PATH",
		"VISION_DEV_MODE",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
	// Never pick up a developer's .env during tests
	t.Setenv("VISION_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

// Helper to set dev mode with required env vars for testing
func setDevModeEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VISION_DEV_MODE", "true")
}

// dur converts Duration to time.Duration for comparison
func dur(d Duration) time.Duration {
	return time.Duration(d)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// Test: Default values when no config file and no env vars (dev mode)
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if dur(cfg.Server.ShutdownTimeout) != 15*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 15s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Path != "data/vision.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "data/vision.db")
	}
	if cfg.LLM.Provider != "cohere" {
		t.Errorf("LLM.Provider = %q, want cohere", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "command-r-08-2024" {
		t.Errorf("LLM.Model = %q, want command-r-08-2024", cfg.LLM.Model)
	}
	if cfg.LLM.GenerateTemperature != 0.3 || cfg.LLM.RecalculateTemperature != 0.4 || cfg.LLM.ChatTemperature != 0.7 {
		t.Errorf("LLM temperatures = %v/%v/%v, want 0.3/0.4/0.7",
			cfg.LLM.GenerateTemperature, cfg.LLM.RecalculateTemperature, cfg.LLM.ChatTemperature)
	}
	if cfg.LLM.MaxTokens != 4000 {
		t.Errorf("LLM.MaxTokens = %d, want 4000", cfg.LLM.MaxTokens)
	}
	if dur(cfg.LLM.GenerateMockDelay) != 3*time.Second {
		t.Errorf("LLM.GenerateMockDelay = %v, want 3s", cfg.LLM.GenerateMockDelay)
	}
	if cfg.Checkout.PayURL != "https://pay.cakto.com.br" {
		t.Errorf("Checkout.PayURL = %q", cfg.Checkout.PayURL)
	}
	if cfg.Checkout.OfferSearch != "Vision" {
		t.Errorf("Checkout.OfferSearch = %q, want Vision", cfg.Checkout.OfferSearch)
	}
	if cfg.Plan.UnlockThreshold != 0.7 {
		t.Errorf("Plan.UnlockThreshold = %v, want 0.7", cfg.Plan.UnlockThreshold)
	}
	if cfg.Archive.Bucket != "" {
		t.Errorf("Archive.Bucket = %q, want empty", cfg.Archive.Bucket)
	}
	if dur(cfg.Worker.DraftRetention) != 720*time.Hour {
		t.Errorf("Worker.DraftRetention = %v, want 720h", cfg.Worker.DraftRetention)
	}
	if dur(cfg.Worker.ControllerSweepInterval) != 5*time.Minute {
		t.Errorf("Worker.ControllerSweepInterval = %v, want 5m", cfg.Worker.ControllerSweepInterval)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

// Test: Validation fails without the service API key (non-dev mode)
func TestLoad_ValidationFailsWithoutAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error when VISION_API_KEY missing, got nil")
	}
}

// Test: Missing LLM credentials are not an error (degraded mode)
func TestLoad_MissingLLMKeyIsAllowed(t *testing.T) {
	clearEnv(t)
	t.Setenv("VISION_API_KEY", "test-api-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey() != "" {
		t.Errorf("LLM.APIKey() = %q, want empty", cfg.LLM.APIKey())
	}
}

func TestLLMConfig_APIKeyFollowsProvider(t *testing.T) {
	c := LLMConfig{Provider: "cohere", CohereAPIKey: "co", OpenAIAPIKey: "sk"}
	if c.APIKey() != "co" {
		t.Errorf("cohere APIKey() = %q", c.APIKey())
	}
	c.Provider = "openai"
	if c.APIKey() != "sk" {
		t.Errorf("openai APIKey() = %q", c.APIKey())
	}
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	t.Setenv("VISION_LLM_PROVIDER", "mistral")

	if _, err := Load(); err == nil {
		t.Error("Load() expected error for unknown provider")
	}
}

func TestLoad_RejectsBadTimezone(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	t.Setenv("VISION_STREAK_TIMEZONE", "Mars/Olympus_Mons")

	if _, err := Load(); err == nil {
		t.Error("Load() expected error for unknown timezone")
	}
}

// Test: Environment variables override defaults
func TestLoad_EnvVarOverrides(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	t.Setenv("VISION_PORT", "9090")
	t.Setenv("VISION_DB_PATH", "/custom/path.db")
	t.Setenv("VISION_LOG_LEVEL", "debug")
	t.Setenv("COHERE_API_KEY", "co-key")
	t.Setenv("CAKTO_CLIENT_ID", "client")
	t.Setenv("CAKTO_CLIENT_SECRET", "secret")
	t.Setenv("CAKTO_OFFER_ID", "abc123")
	t.Setenv("VISION_UNLOCK_THRESHOLD", "0.5")
	t.Setenv("VISION_S3_USE_SSL", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.LLM.APIKey() != "co-key" {
		t.Errorf("LLM.APIKey() = %q, want co-key", cfg.LLM.APIKey())
	}
	if cfg.Checkout.ClientID != "client" || cfg.Checkout.ClientSecret != "secret" {
		t.Errorf("Checkout credentials not applied: %+v", cfg.Checkout)
	}
	if cfg.Checkout.OfferID != "abc123" {
		t.Errorf("Checkout.OfferID = %q", cfg.Checkout.OfferID)
	}
	if cfg.Plan.UnlockThreshold != 0.5 {
		t.Errorf("Plan.UnlockThreshold = %v, want 0.5", cfg.Plan.UnlockThreshold)
	}
	if cfg.Archive.UseSSL == nil || *cfg.Archive.UseSSL {
		t.Errorf("Archive.UseSSL = %v, want false", cfg.Archive.UseSSL)
	}
}

// Test: .env file values are loaded but do not override the real environment
func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	envPath := writeFile(t, ".env", "COHERE_API_KEY=from-dotenv\nVISION_PORT=7070\n")
	t.Setenv("VISION_ENV_FILE", envPath)
	t.Setenv("VISION_PORT", "9191")
	// godotenv sets variables it loads; make sure they do not leak into other tests
	t.Cleanup(func() { os.Unsetenv("COHERE_API_KEY") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.CohereAPIKey != "from-dotenv" {
		t.Errorf("LLM.CohereAPIKey = %q, want from-dotenv", cfg.LLM.CohereAPIKey)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191 (env wins over .env)", cfg.Server.Port)
	}
}

func TestLoadFromFile_ValidYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeFile(t, "vision.yaml", `
server:
  port: 9000
  read_timeout: 10s
llm:
  provider: openai
  model: gpt-4o-mini
  generate_mock_delay: 0s
checkout:
  offer_id: offer-1
plan:
  unlock_threshold: 0.9
streak:
  timezone: America/Sao_Paulo
archive:
  bucket: plans
  endpoint: localhost:9000
  url_expiry: 30m
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if dur(cfg.Server.ReadTimeout) != 10*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if dur(cfg.LLM.GenerateMockDelay) != 0 {
		t.Errorf("LLM.GenerateMockDelay = %v, want 0", cfg.LLM.GenerateMockDelay)
	}
	// Unset fields keep defaults
	if dur(cfg.LLM.RecalculateMockDelay) != 2*time.Second {
		t.Errorf("LLM.RecalculateMockDelay = %v, want 2s", cfg.LLM.RecalculateMockDelay)
	}
	if cfg.Checkout.OfferID != "offer-1" {
		t.Errorf("Checkout.OfferID = %q", cfg.Checkout.OfferID)
	}
	if cfg.Plan.UnlockThreshold != 0.9 {
		t.Errorf("Plan.UnlockThreshold = %v", cfg.Plan.UnlockThreshold)
	}
	loc, err := cfg.Streak.Location()
	if err != nil || loc.String() != "America/Sao_Paulo" {
		t.Errorf("Streak.Location() = %v, %v", loc, err)
	}
	if cfg.Archive.Bucket != "plans" || dur(cfg.Archive.URLExpiry) != 30*time.Minute {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeFile(t, "bad.yaml", "server: [unclosed")
	_, err := LoadFromFile(path)
	if err == nil {
		t.Fatal("LoadFromFile() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("error = %v, want parsing config file", err)
	}
}

func TestLoadFromFile_RejectsZeroSweepInterval(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeFile(t, "bad.yaml", "worker:\n  draft_sweep_interval: 0s\n")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() expected error for zero sweep interval")
	}
}

func TestLoadFromFile_InvalidDuration(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeFile(t, "bad.yaml", "server:\n  read_timeout: soon\n")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() expected error for invalid duration")
	}
}

// Test: Env vars override YAML values
func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeFile(t, "vision.yaml", "database:\n  path: /yaml/path.db\n")
	t.Setenv("VISION_CONFIG_PATH", path)
	t.Setenv("VISION_DB_PATH", "/env/path.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/env/path.db" {
		t.Errorf("Database.Path = %q, want /env/path.db", cfg.Database.Path)
	}
}

// Test: Secrets never round-trip through YAML
func TestConfig_SecretsNotInYAML(t *testing.T) {
	cfg := newDefaults()
	cfg.LLM.CohereAPIKey = "co-secret"
	cfg.LLM.OpenAIAPIKey = "sk-secret"
	cfg.Checkout.ClientSecret = "cakto-secret"
	cfg.Auth.APIKey = "service-secret"
	cfg.Archive.SecretKey = "s3-secret"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	out := string(data)
	for _, secret := range []string{"co-secret", "sk-secret", "cakto-secret", "service-secret", "s3-secret"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret %q leaked into YAML output", secret)
		}
	}
}
