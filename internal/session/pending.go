// ABOUTME: Tracks chats that were asked to send their API key as the next message
// ABOUTME: Process-local with a TTL so abandoned prompts don't swallow messages forever

package session

import (
	"sync"
	"time"
)

const defaultPendingTTL = 10 * time.Minute

// Pending remembers, per chat, that the next non-command message should
// be treated as an API key rather than a prompt. Entries expire lazily
// after the TTL. State lives in this process only, so a multi-worker
// deployment needs sticky routing or an externalized flag.
type Pending struct {
	mu       sync.Mutex
	awaiting map[int64]time.Time
	ttl      time.Duration
}

// NewPending builds a tracker. ttl <= 0 selects the default of ten minutes.
func NewPending(ttl time.Duration) *Pending {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &Pending{
		awaiting: make(map[int64]time.Time),
		ttl:      ttl,
	}
}

// Begin marks the chat as awaiting a key. Calling it again restarts the TTL.
func (p *Pending) Begin(chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.awaiting[chatID] = time.Now()
}

// Consume reports whether the chat was awaiting a key and clears the
// flag either way. Expired entries count as not awaiting.
func (p *Pending) Consume(chatID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	started, ok := p.awaiting[chatID]
	if !ok {
		return false
	}
	delete(p.awaiting, chatID)
	return time.Since(started) < p.ttl
}

// Cancel clears the flag and reports whether one was set.
func (p *Pending) Cancel(chatID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	started, ok := p.awaiting[chatID]
	if !ok {
		return false
	}
	delete(p.awaiting, chatID)
	return time.Since(started) < p.ttl
}
