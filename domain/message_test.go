package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessage_Remaining(t *testing.T) {
	req := require.New(t)
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		ttl      int
		at       time.Time
		expected time.Duration
	}{
		{
			name:     "Full life at the timestamp itself",
			ttl:      300,
			at:       base,
			expected: 300 * time.Second,
		},
		{
			name:     "Strictly decreasing over time",
			ttl:      300,
			at:       base.Add(120 * time.Second),
			expected: 180 * time.Second,
		},
		{
			name:     "Reaches exactly zero at the deadline",
			ttl:      300,
			at:       base.Add(300 * time.Second),
			expected: 0,
		},
		{
			name:     "Clamped at zero, never negative",
			ttl:      300,
			at:       base.Add(301 * time.Second),
			expected: 0,
		},
		{
			name:     "Zero ttl has no life at all",
			ttl:      0,
			at:       base,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Message{ID: "m1", Timestamp: base, TTLSeconds: tt.ttl}
			require.Equal(t, tt.expected, msg.Remaining(tt.at))
		})
	}

	// ttl=0 is immediately eligible for "Expired" display.
	zero := Message{ID: "m2", Timestamp: base, TTLSeconds: 0}
	req.True(zero.Expired(base))

	alive := Message{ID: "m3", Timestamp: base, TTLSeconds: 60}
	req.False(alive.Expired(base.Add(59 * time.Second)))
	req.True(alive.Expired(base.Add(60 * time.Second)))
}

func TestGenerateAgentID_Format(t *testing.T) {
	req := require.New(t)
	pattern := regexp.MustCompile(`^(Silent|Shadow|Ghost|Phantom|Stealth|Covert|Hidden|Secret)-\d{3}$`)

	for i := 0; i < 50; i++ {
		id := GenerateAgentID()
		req.Regexp(pattern, string(id))
	}
}

func TestMessage_IsOwn(t *testing.T) {
	req := require.New(t)
	msg := Message{ID: "m1", Sender: "Ghost-007"}
	req.True(msg.IsOwn("Ghost-007"))
	req.False(msg.IsOwn("Shadow-001"))
}
