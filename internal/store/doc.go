// Package store provides persistent per-chat state for gemini-tel-bot
// using SQLite.
//
// # Architecture
//
// Two narrow interfaces cover the package's concerns:
//
//   - SettingsStore: per-chat API key, model and free-tier message count
//   - HistoryStore: the ordered conversation turns replayed to the provider
//
// Store combines both; SQLiteStore implements everything in a single
// struct so callers can depend on only the slice they need.
//
// # Semantics
//
// Settings reads never fail on absence: an unknown chat gets defaults
// (no key, the configured default model, count zero). SaveTurn is an
// upsert keyed on (chat_id, turn_index), and history reads apply the
// configured window so only the most recent turns are returned.
//
// # SQLite Configuration
//
// The database runs with WAL mode and foreign keys on:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created on open; use ":memory:" for tests that want a
// real database.
//
// # Error Handling
//
//   - ErrUnavailable: the backing database cannot be reached
//   - ErrEmptyTurn: a user turn carried nothing persistable
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests; it implements Store in memory and
// exposes failure toggles for each operation.
package store
