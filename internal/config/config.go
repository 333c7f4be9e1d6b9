// ABOUTME: Configuration loading and parsing for gemini-tel-bot
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gemini-tel-bot configuration
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Limits   LimitsConfig   `yaml:"limits"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TelegramConfig holds the bot transport configuration
type TelegramConfig struct {
	Token string `yaml:"token"`
	// Mode selects how updates arrive: "polling" or "webhook"
	Mode          string `yaml:"mode"`
	WebhookURL    string `yaml:"webhook_url"`
	WebhookAddr   string `yaml:"webhook_addr"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// GeminiConfig holds the AI provider configuration
type GeminiConfig struct {
	// DefaultAPIKey backs chats without their own key. Optional.
	DefaultAPIKey string `yaml:"default_api_key"`
	DefaultModel  string `yaml:"default_model"`

	RequestTimeout time.Duration `yaml:"-"`
	ClientCacheTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
	ClientCacheTTLRaw string `yaml:"client_cache_ttl"`
}

// LimitsConfig holds the per-chat usage limits
type LimitsConfig struct {
	// FreeMessageLimit caps messages for default-key chats. Zero disables it.
	FreeMessageLimit int `yaml:"free_message_limit"`
	// HistoryWindow is the number of most recent turns replayed to the model.
	HistoryWindow int `yaml:"history_window"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied before the file is parsed.
const (
	DefaultMode          = "polling"
	DefaultModel         = "models/gemini-2.0-flash"
	DefaultMessageLimit  = 5
	DefaultHistoryWindow = 20
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Config{
		Telegram: TelegramConfig{Mode: DefaultMode},
		Gemini:   GeminiConfig{DefaultModel: DefaultModel},
		Limits: LimitsConfig{
			FreeMessageLimit: DefaultMessageLimit,
			HistoryWindow:    DefaultHistoryWindow,
		},
	}
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}

	switch c.Telegram.Mode {
	case "polling":
	case "webhook":
		if c.Telegram.WebhookURL == "" {
			return fmt.Errorf("telegram.webhook_url is required in webhook mode")
		}
		if c.Telegram.WebhookAddr == "" {
			return fmt.Errorf("telegram.webhook_addr is required in webhook mode")
		}
	default:
		return fmt.Errorf("telegram.mode must be \"polling\" or \"webhook\", got %q", c.Telegram.Mode)
	}

	if c.Gemini.DefaultModel == "" {
		return fmt.Errorf("gemini.default_model is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Limits.HistoryWindow < 0 {
		return fmt.Errorf("limits.history_window must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Gemini.RequestTimeoutRaw != "" {
		cfg.Gemini.RequestTimeout, err = time.ParseDuration(cfg.Gemini.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Gemini.RequestTimeoutRaw, err)
		}
	}

	if cfg.Gemini.ClientCacheTTLRaw != "" {
		cfg.Gemini.ClientCacheTTL, err = time.ParseDuration(cfg.Gemini.ClientCacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing client_cache_ttl %q: %w", cfg.Gemini.ClientCacheTTLRaw, err)
		}
	}

	return nil
}
