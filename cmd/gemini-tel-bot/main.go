// ABOUTME: Entry point for the gemini-tel-bot Telegram service
// ABOUTME: Wires config, store, provider cache, engine and transport together

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/bot"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/config"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/genai"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/session"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                           _       _        _       _           _     _
   __ _  ___ _ __ ___  ___(_)     | |_ ___ | |     | |__   ___ | |_  (_)
  / _' |/ _ \ '_ ' _ \/ __| |_____| __/ _ \| |_____| '_ \ / _ \| __| | |
 | (_| |  __/ | | | | \__ \ |_____| ||  __/| |_____| |_) | (_) | |_  |_|
  \__, |\___|_| |_| |_|___/_|      \__\___||_|     |_.__/ \___/ \__| (_)
  |___/
`

const clientCacheSize = 128

func main() {
	root := &cobra.Command{
		Use:           "gemini-tel-bot",
		Short:         "Telegram bot backed by Google Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath, envFile string
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to optional .env file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, envFile)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	root.AddCommand(serve, versionCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if envPath := os.Getenv("GEMINI_TEL_BOT_CONFIG"); envPath != "" {
		return envPath
	}
	return "config.yaml"
}

func runServe(ctx context.Context, configPath, envFile string) error {
	// .env is a convenience for local runs; absence is fine.
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading env file: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Mode:     %s\n", cfg.Telegram.Mode)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.Gemini.DefaultModel)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting gemini-tel-bot",
		"config", configPath,
		"mode", cfg.Telegram.Mode,
		"model", cfg.Gemini.DefaultModel,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path, store.Options{
		DefaultModel:  cfg.Gemini.DefaultModel,
		HistoryWindow: cfg.Limits.HistoryWindow,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	var clientOpts []genai.ClientOption
	if cfg.Gemini.RequestTimeout > 0 {
		clientOpts = append(clientOpts, genai.WithTimeout(cfg.Gemini.RequestTimeout))
	}
	cacheTTL := cfg.Gemini.ClientCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	cache := genai.NewClientCache(cacheTTL, clientCacheSize, clientOpts...)
	defer cache.Close()

	tgClient, err := bot.NewClient(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("creating telegram client: %w", err)
	}

	engine := session.New(st, &session.CacheResolver{Cache: cache}, bot.NewSender(tgClient, logger), session.Config{
		DefaultAPIKey: cfg.Gemini.DefaultAPIKey,
		MessageLimit:  cfg.Limits.FreeMessageLimit,
	}, logger)

	dispatcher := bot.NewDispatcher(tgClient, engine, logger)

	switch cfg.Telegram.Mode {
	case "webhook":
		if err := tgClient.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			return fmt.Errorf("registering webhook: %w", err)
		}
		server := bot.NewWebhookServer(dispatcher, cfg.Telegram.WebhookAddr, cfg.Telegram.WebhookSecret, logger)
		return server.Run(ctx)
	default:
		poller := bot.NewPoller(tgClient, dispatcher, logger)
		return poller.Run(ctx)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	_, err := fmt.Fprint(os.Stdout, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{
		level:  h.level,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}
