package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPending_ConsumeClearsFlag(t *testing.T) {
	p := NewPending(time.Minute)

	p.Begin(1)
	assert.True(t, p.Consume(1))
	assert.False(t, p.Consume(1))
}

func TestPending_NotAwaitingByDefault(t *testing.T) {
	p := NewPending(time.Minute)
	assert.False(t, p.Consume(1))
}

func TestPending_PerChatIsolation(t *testing.T) {
	p := NewPending(time.Minute)

	p.Begin(1)
	assert.False(t, p.Consume(2))
	assert.True(t, p.Consume(1))
}

func TestPending_CancelReportsState(t *testing.T) {
	p := NewPending(time.Minute)

	assert.False(t, p.Cancel(1))
	p.Begin(1)
	assert.True(t, p.Cancel(1))
	assert.False(t, p.Consume(1))
}

func TestPending_ExpiredEntryNotConsumed(t *testing.T) {
	p := NewPending(time.Nanosecond)

	p.Begin(1)
	time.Sleep(time.Millisecond)
	assert.False(t, p.Consume(1))
}
