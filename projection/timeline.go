// Package projection builds the local timeline from observed frames.
// Handles normalization, ordering and deduplication. It does not emit
// events or talk to the backend.
package projection

import (
	"chat-bridge/domain"
	"sort"
	"sync"
)

// Timeline is the ordered, deduplicated sequence of messages delivered to
// the application for the current session.
//
// Ordering is ascending by timestamp; two messages with the exact same
// timestamp keep arrival order. Out-of-order arrivals (reconnect replays)
// are inserted into the held sequence, not appended.
type Timeline struct {
	mu       sync.RWMutex
	messages []domain.Message
	seen     map[string]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{
		seen: make(map[string]struct{}),
	}
}

// Insert adds a message at its chronological position. Returns false when
// the ID was already delivered in this session; the backend may redeliver
// after a reconnect and delivery must stay idempotent.
func (t *Timeline) Insert(m domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(m)
}

// Merge inserts a normalized transcript batch into the already-delivered
// sequence and returns, in chronological order, only the messages that
// were actually new.
func (t *Timeline) Merge(batch []domain.Message) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	var added []domain.Message
	for _, m := range batch {
		if t.insertLocked(m) {
			added = append(added, m)
		}
	}
	sort.SliceStable(added, func(i, j int) bool {
		return added[i].At.Before(added[j].At)
	})
	return added
}

// Snapshot returns a copy of the ordered sequence.
func (t *Timeline) Snapshot() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset drops the sequence and the dedup set. Called when a new session
// replaces the current one.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.seen = make(map[string]struct{})
}

func (t *Timeline) insertLocked(m domain.Message) bool {
	if _, dup := t.seen[m.ID]; dup {
		return false
	}
	t.seen[m.ID] = struct{}{}

	// First index strictly after m keeps ties in arrival order.
	idx := sort.Search(len(t.messages), func(i int) bool {
		return t.messages[i].At.After(m.At)
	})
	t.messages = append(t.messages, domain.Message{})
	copy(t.messages[idx+1:], t.messages[idx:])
	t.messages[idx] = m
	return true
}
