package session

import (
	"time"

	"ghostroom/domain"
)

// messageLog is the session's unified message sequence. Display order
// is insertion order: history records applied once at startup, then
// live events in arrival order; no re-sorting by timestamp. The
// message id is the sole dedup key, whichever source delivers it
// first. Not safe for concurrent use; the engine's lock serializes
// access.
type messageLog struct {
	entries []domain.Message
	index   map[string]struct{}
}

func newMessageLog() *messageLog {
	return &messageLog{index: make(map[string]struct{})}
}

// Append adds a message unless its id is already present. Idempotent:
// replaying the same id from any source is a no-op.
func (l *messageLog) Append(msg domain.Message) bool {
	if _, ok := l.index[msg.ID]; ok {
		return false
	}
	l.index[msg.ID] = struct{}{}
	l.entries = append(l.entries, msg)
	return true
}

// Remove drops a message by id; no-op when absent. Both the local
// sweep and server expiry events converge on this one path.
func (l *messageLog) Remove(id string) bool {
	if _, ok := l.index[id]; !ok {
		return false
	}
	delete(l.index, id)
	for i, msg := range l.entries {
		if msg.ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
	return true
}

// SweepExpired removes every message whose ttl has elapsed and
// returns the removed ids.
func (l *messageLog) SweepExpired(now time.Time) []string {
	var expired []string
	for _, msg := range l.entries {
		if msg.Expired(now) {
			expired = append(expired, msg.ID)
		}
	}
	for _, id := range expired {
		l.Remove(id)
	}
	return expired
}

// Snapshot returns a copy of the log in display order.
func (l *messageLog) Snapshot() []domain.Message {
	out := make([]domain.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *messageLog) Len() int {
	return len(l.entries)
}
