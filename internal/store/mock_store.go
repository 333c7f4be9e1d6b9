// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows engine tests to run without SQLite and to inject store failures

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/chat"
)

// MockStore is an in-memory Store implementation for testing. Any of the
// Fail* hooks forces the corresponding operation to return ErrUnavailable.
type MockStore struct {
	mu       sync.RWMutex
	settings map[int64]*ChatSettings
	history  map[int64]map[int]chat.Turn

	DefaultModel  string
	HistoryWindow int

	FailSettings     bool
	FailSaveSettings bool
	FailHistory      bool
	FailSaveTurn     bool
	FailClear        bool

	SaveSettingsCalls int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		settings: make(map[int64]*ChatSettings),
		history:  make(map[int64]map[int]chat.Turn),
	}
}

// Settings returns stored settings or defaults, like the SQLite store.
func (m *MockStore) Settings(ctx context.Context, chatID int64) (*ChatSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailSettings {
		return nil, ErrUnavailable
	}
	if s, ok := m.settings[chatID]; ok {
		copied := *s
		return &copied, nil
	}
	return &ChatSettings{ChatID: chatID, Model: m.DefaultModel}, nil
}

// SaveSettings upserts settings, preserving the counter when count is nil.
func (m *MockStore) SaveSettings(ctx context.Context, chatID int64, apiKey, model string, count *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveSettingsCalls++
	if m.FailSaveSettings {
		return ErrUnavailable
	}

	current, ok := m.settings[chatID]
	next := &ChatSettings{ChatID: chatID, APIKey: apiKey, Model: model}
	if count != nil {
		next.MessageCount = *count
	} else if ok {
		next.MessageCount = current.MessageCount
	}
	m.settings[chatID] = next
	return nil
}

// History returns turns ascending by index with the window applied.
func (m *MockStore) History(ctx context.Context, chatID int64) ([]chat.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailHistory {
		return nil, ErrUnavailable
	}

	byIndex := m.history[chatID]
	turns := make([]chat.Turn, 0, len(byIndex))
	for _, t := range byIndex {
		turns = append(turns, t)
	}
	sort.Slice(turns, func(i, j int) bool { return turns[i].Index < turns[j].Index })

	if m.HistoryWindow > 0 && len(turns) > m.HistoryWindow {
		turns = turns[len(turns)-m.HistoryWindow:]
	}
	return turns, nil
}

// SaveTurn upserts a turn, applying the same empty-user-turn rejection as
// the SQLite store.
func (m *MockStore) SaveTurn(ctx context.Context, turn chat.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSaveTurn {
		return ErrUnavailable
	}

	if turn.Role == chat.RoleUser {
		empty := true
		for _, p := range turn.Parts {
			if p.Placeholder() != "" || p.Type == chat.PartFunctionCall || p.Type == chat.PartFunctionResponse {
				empty = false
				break
			}
		}
		if empty {
			return ErrEmptyTurn
		}
	}

	if m.history[turn.ChatID] == nil {
		m.history[turn.ChatID] = make(map[int]chat.Turn)
	}
	m.history[turn.ChatID][turn.Index] = turn
	return nil
}

// ClearHistory removes all turns for the chat.
func (m *MockStore) ClearHistory(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailClear {
		return ErrUnavailable
	}
	delete(m.history, chatID)
	return nil
}
