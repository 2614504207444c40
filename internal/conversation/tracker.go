package conversation

import (
	"sync"
	"time"
)

// Turn is one message in a conversation history.
type Turn struct {
	ConversationID string
	Role           string
	Text           string
	Timestamp      time.Time
}

// history serializes appends for one conversation independently of others.
type history struct {
	mu    sync.Mutex
	turns []Turn
}

// Tracker holds bounded per-conversation turn history for the lifetime of the
// process. Conversations are fully independent; appends to one never block
// reads or writes on another.
type Tracker struct {
	mu       sync.RWMutex
	convs    map[string]*history
	maxTurns int
}

// NewTracker creates a Tracker. maxTurns caps the history kept per
// conversation, dropping oldest turns first; <= 0 means unbounded.
func NewTracker(maxTurns int) *Tracker {
	return &Tracker{
		convs:    make(map[string]*history),
		maxTurns: maxTurns,
	}
}

func (t *Tracker) conv(id string) *history {
	t.mu.RLock()
	h, ok := t.convs[id]
	t.mu.RUnlock()
	if ok {
		return h
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.convs[id]; ok {
		return h
	}
	h = &history{}
	t.convs[id] = h
	return h
}

// Append records a turn, creating the conversation if it does not exist yet.
func (t *Tracker) Append(conversationID, role, text string) {
	h := t.conv(conversationID)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, Turn{
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	})
	if t.maxTurns > 0 && len(h.turns) > t.maxTurns {
		h.turns = h.turns[len(h.turns)-t.maxTurns:]
	}
}

// History returns the most recent maxTurns turns in chronological order.
// maxTurns <= 0 returns the full history. An unknown conversation yields an
// empty result.
func (t *Tracker) History(conversationID string, maxTurns int) []Turn {
	t.mu.RLock()
	h, ok := t.convs[conversationID]
	t.mu.RUnlock()
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Clear removes all history for one conversation.
func (t *Tracker) Clear(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.convs, conversationID)
}

// ClearAll removes all conversations.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.convs = make(map[string]*history)
}
