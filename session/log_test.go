package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ghostroom/domain"
)

func TestMessageLog_AppendIsIdempotent(t *testing.T) {
	req := require.New(t)
	log := newMessageLog()

	req.True(log.Append(domain.Message{ID: "m1", Body: "first"}))
	req.True(log.Append(domain.Message{ID: "m2", Body: "second"}))
	req.False(log.Append(domain.Message{ID: "m1", Body: "replayed"}), "duplicate id must be a no-op")

	snapshot := log.Snapshot()
	req.Len(snapshot, 2)
	req.Equal("first", snapshot[0].Body, "the first arrival wins")
	req.Equal("m2", snapshot[1].ID)
}

func TestMessageLog_InsertionOrderIsPreserved(t *testing.T) {
	req := require.New(t)
	log := newMessageLog()
	base := time.Now()

	// Later timestamp first: arrival order beats timestamp order.
	log.Append(domain.Message{ID: "live", Timestamp: base.Add(time.Hour), TTLSeconds: 3600})
	log.Append(domain.Message{ID: "hist", Timestamp: base, TTLSeconds: 3600})

	snapshot := log.Snapshot()
	req.Equal("live", snapshot[0].ID)
	req.Equal("hist", snapshot[1].ID)
}

func TestMessageLog_RemoveIsIdempotent(t *testing.T) {
	req := require.New(t)
	log := newMessageLog()
	log.Append(domain.Message{ID: "m1"})

	req.True(log.Remove("m1"))
	req.False(log.Remove("m1"), "second removal is a no-op")
	req.False(log.Remove("never-existed"))
	req.Zero(log.Len())
}

func TestMessageLog_SweepExpired(t *testing.T) {
	req := require.New(t)
	log := newMessageLog()
	now := time.Now()

	log.Append(domain.Message{ID: "gone", Timestamp: now.Add(-10 * time.Second), TTLSeconds: 5})
	log.Append(domain.Message{ID: "zero-ttl", Timestamp: now, TTLSeconds: 0})
	log.Append(domain.Message{ID: "alive", Timestamp: now, TTLSeconds: 300})

	expired := log.SweepExpired(now)
	req.ElementsMatch([]string{"gone", "zero-ttl"}, expired)

	snapshot := log.Snapshot()
	req.Len(snapshot, 1)
	req.Equal("alive", snapshot[0].ID)

	req.Empty(log.SweepExpired(now), "sweep is idempotent")
}
