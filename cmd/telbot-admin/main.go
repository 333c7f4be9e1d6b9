// ABOUTME: Admin CLI for inspecting and fixing up gemini-tel-bot chat state
// ABOUTME: Talks to the SQLite store directly; run it next to the bot's database

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/config"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	dbPath := os.Getenv("GEMINI_TEL_BOT_DB")
	if dbPath == "" {
		dbPath = "bot.db"
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "settings":
		err = cmdSettings(dbPath, args)
	case "history":
		err = cmdHistory(dbPath, args)
	case "reset":
		err = cmdReset(dbPath, args)
	case "clear-key":
		err = cmdClearKey(dbPath, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: telbot-admin <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  settings <chat_id>   Show a chat's settings")
	fmt.Println("  history <chat_id>    Show a chat's stored turns")
	fmt.Println("  reset <chat_id>      Clear a chat's history")
	fmt.Println("  clear-key <chat_id>  Drop a chat's custom API key")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  GEMINI_TEL_BOT_DB    Path to the bot database (default: bot.db)")
}

func openStore(dbPath string) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(dbPath, store.Options{
		DefaultModel: config.DefaultModel,
	})
}

func parseChatID(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("chat_id argument is required")
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat_id %q: %w", args[0], err)
	}
	return chatID, nil
}

func cmdSettings(dbPath string, args []string) error {
	chatID, err := parseChatID(args)
	if err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	settings, err := st.Settings(context.Background(), chatID)
	if err != nil {
		return err
	}

	keyStatus := color.HiBlackString("(default)")
	if settings.APIKey != "" {
		keyStatus = color.GreenString("custom (%d chars)", len(settings.APIKey))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Chat ID:\t%d\n", settings.ChatID)
	fmt.Fprintf(w, "API key:\t%s\n", keyStatus)
	fmt.Fprintf(w, "Model:\t%s\n", settings.Model)
	fmt.Fprintf(w, "Message count:\t%d\n", settings.MessageCount)
	return w.Flush()
}

func cmdHistory(dbPath string, args []string) error {
	chatID, err := parseChatID(args)
	if err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	turns, err := st.History(context.Background(), chatID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Println("No stored history.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tROLE\tCONTENT")
	for _, turn := range turns {
		content := ""
		for _, part := range turn.Parts {
			if text := part.Placeholder(); text != "" {
				content = text
				break
			}
		}
		if len(content) > 60 {
			content = content[:57] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", turn.Index, turn.Role, content)
	}
	return w.Flush()
}

func cmdReset(dbPath string, args []string) error {
	chatID, err := parseChatID(args)
	if err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ClearHistory(context.Background(), chatID); err != nil {
		return err
	}
	color.Green("History cleared for chat %d", chatID)
	return nil
}

func cmdClearKey(dbPath string, args []string) error {
	chatID, err := parseChatID(args)
	if err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	settings, err := st.Settings(ctx, chatID)
	if err != nil {
		return err
	}
	if settings.APIKey == "" {
		fmt.Println("Chat has no custom API key.")
		return nil
	}

	zero := 0
	if err := st.SaveSettings(ctx, chatID, "", settings.Model, &zero); err != nil {
		return err
	}
	if err := st.ClearHistory(ctx, chatID); err != nil {
		return err
	}
	color.Green("Custom API key removed for chat %d; history reset", chatID)
	return nil
}
