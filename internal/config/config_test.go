// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
telegram:
  token: "12345:test-token"
  mode: "webhook"
  webhook_url: "https://bot.example.com/telegram"
  webhook_addr: "0.0.0.0:8443"
  webhook_secret: "hook-secret"

gemini:
  default_api_key: "AIza-default"
  default_model: "models/gemini-1.5-pro"
  request_timeout: "90s"
  client_cache_ttl: "30m"

limits:
  free_message_limit: 10
  history_window: 40

database:
  path: "./test.db"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Token != "12345:test-token" {
		t.Errorf("Telegram.Token = %q, want %q", cfg.Telegram.Token, "12345:test-token")
	}
	if cfg.Telegram.Mode != "webhook" {
		t.Errorf("Telegram.Mode = %q, want %q", cfg.Telegram.Mode, "webhook")
	}
	if cfg.Telegram.WebhookURL != "https://bot.example.com/telegram" {
		t.Errorf("Telegram.WebhookURL = %q, want %q", cfg.Telegram.WebhookURL, "https://bot.example.com/telegram")
	}
	if cfg.Telegram.WebhookSecret != "hook-secret" {
		t.Errorf("Telegram.WebhookSecret = %q, want %q", cfg.Telegram.WebhookSecret, "hook-secret")
	}

	if cfg.Gemini.DefaultAPIKey != "AIza-default" {
		t.Errorf("Gemini.DefaultAPIKey = %q, want %q", cfg.Gemini.DefaultAPIKey, "AIza-default")
	}
	if cfg.Gemini.DefaultModel != "models/gemini-1.5-pro" {
		t.Errorf("Gemini.DefaultModel = %q, want %q", cfg.Gemini.DefaultModel, "models/gemini-1.5-pro")
	}
	if cfg.Gemini.RequestTimeout != 90*time.Second {
		t.Errorf("Gemini.RequestTimeout = %v, want %v", cfg.Gemini.RequestTimeout, 90*time.Second)
	}
	if cfg.Gemini.ClientCacheTTL != 30*time.Minute {
		t.Errorf("Gemini.ClientCacheTTL = %v, want %v", cfg.Gemini.ClientCacheTTL, 30*time.Minute)
	}

	if cfg.Limits.FreeMessageLimit != 10 {
		t.Errorf("Limits.FreeMessageLimit = %d, want 10", cfg.Limits.FreeMessageLimit)
	}
	if cfg.Limits.HistoryWindow != 40 {
		t.Errorf("Limits.HistoryWindow = %d, want 40", cfg.Limits.HistoryWindow)
	}

	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
telegram:
  token: "12345:test-token"
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Mode != "polling" {
		t.Errorf("Telegram.Mode = %q, want %q", cfg.Telegram.Mode, "polling")
	}
	if cfg.Gemini.DefaultModel != DefaultModel {
		t.Errorf("Gemini.DefaultModel = %q, want %q", cfg.Gemini.DefaultModel, DefaultModel)
	}
	if cfg.Limits.FreeMessageLimit != 5 {
		t.Errorf("Limits.FreeMessageLimit = %d, want 5", cfg.Limits.FreeMessageLimit)
	}
	if cfg.Limits.HistoryWindow != 20 {
		t.Errorf("Limits.HistoryWindow = %d, want 20", cfg.Limits.HistoryWindow)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "12345:from-env")
	t.Setenv("TEST_GEMINI_KEY", "AIza-from-env")

	configPath := writeConfig(t, `
telegram:
  token: "${TEST_BOT_TOKEN}"
gemini:
  default_api_key: "${TEST_GEMINI_KEY}"
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Token != "12345:from-env" {
		t.Errorf("Telegram.Token = %q, want %q", cfg.Telegram.Token, "12345:from-env")
	}
	if cfg.Gemini.DefaultAPIKey != "AIza-from-env" {
		t.Errorf("Gemini.DefaultAPIKey = %q, want %q", cfg.Gemini.DefaultAPIKey, "AIza-from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	// Ensure the env var is NOT set
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	configPath := writeConfig(t, `
telegram:
  token: "12345:test-token"
gemini:
  default_api_key: "${UNSET_VAR_FOR_TEST}"
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset env vars should expand to empty string
	if cfg.Gemini.DefaultAPIKey != "" {
		t.Errorf("Gemini.DefaultAPIKey = %q, want empty string for unset env var", cfg.Gemini.DefaultAPIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
telegram:
  token: "12345:test-token"
  mode "missing colon"
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
telegram:
  token: "12345:test-token"
gemini:
  request_timeout: "invalid-duration"
database:
  path: "./test.db"
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid duration, got nil")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name: "missing token",
			configContent: `
telegram:
  token: ""
database:
  path: "./test.db"
`,
			wantErrSubstr: "telegram.token is required",
		},
		{
			name: "missing database path",
			configContent: `
telegram:
  token: "12345:test-token"
database:
  path: ""
`,
			wantErrSubstr: "database.path is required",
		},
		{
			name: "webhook mode without url",
			configContent: `
telegram:
  token: "12345:test-token"
  mode: "webhook"
  webhook_addr: "0.0.0.0:8443"
database:
  path: "./test.db"
`,
			wantErrSubstr: "telegram.webhook_url is required",
		},
		{
			name: "webhook mode without addr",
			configContent: `
telegram:
  token: "12345:test-token"
  mode: "webhook"
  webhook_url: "https://bot.example.com/telegram"
database:
  path: "./test.db"
`,
			wantErrSubstr: "telegram.webhook_addr is required",
		},
		{
			name: "unknown mode",
			configContent: `
telegram:
  token: "12345:test-token"
  mode: "carrier-pigeon"
database:
  path: "./test.db"
`,
			wantErrSubstr: "telegram.mode must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.configContent)

			_, err := Load(configPath)
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}

			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single env var",
			input:    "${FOO}",
			expected: "bar",
		},
		{
			name:     "env var with surrounding text",
			input:    "prefix-${FOO}-suffix",
			expected: "prefix-bar-suffix",
		},
		{
			name:     "multiple env vars",
			input:    "${FOO}/${BAZ}",
			expected: "bar/qux",
		},
		{
			name:     "no env vars",
			input:    "no-vars-here",
			expected: "no-vars-here",
		},
		{
			name:     "unset env var",
			input:    "${UNSET_VAR}",
			expected: "",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
