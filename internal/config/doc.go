// Package config handles configuration loading for gemini-tel-bot.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	telegram:
//	  token: "${TELEGRAM_BOT_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	gemini:
//	  request_timeout: "60s"
//	  client_cache_ttl: "30m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Telegram transport:
//
//	telegram:
//	  token: "${TELEGRAM_BOT_TOKEN}"
//	  mode: "polling"                # polling or webhook
//	  webhook_url: "https://bot.example.com/telegram"
//	  webhook_addr: "0.0.0.0:8443"
//	  webhook_secret: "${TELEGRAM_WEBHOOK_SECRET}"
//
// Gemini provider:
//
//	gemini:
//	  default_api_key: "${GEMINI_BOT_DEFAULT_API_KEY}"
//	  default_model: "models/gemini-2.0-flash"
//	  request_timeout: "60s"
//
// Usage limits:
//
//	limits:
//	  free_message_limit: 5    # messages on the shared key, 0 disables
//	  history_window: 20       # turns replayed to the model
//
// Database:
//
//	database:
//	  path: "/var/lib/gemini-tel-bot/bot.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
