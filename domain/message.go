// Package domain contains core concepts of the room protocol.
// Messages are immutable values; no runtime, network, or UI logic
// should be added here.
package domain

import "time"

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
)

// Message is one entry of the session log. The server-assigned ID is
// globally unique within a room and is the sole dedup key across the
// history fetch and the live stream.
type Message struct {
	ID         string
	Kind       MessageKind
	Sender     AgentID
	Timestamp  time.Time
	TTLSeconds int

	// Body holds the displayable text: the message body for text
	// messages, the optional caption for images. Already decrypted
	// when possible; raw or sentinel text otherwise.
	Body string

	// ImageData is a data URL, image messages only. The binary is not
	// encrypted by this engine; the codec/server boundary owns it.
	ImageData string
}

// Remaining reports the message's remaining life, clamped at zero.
func (m Message) Remaining(now time.Time) time.Duration {
	expiry := m.Timestamp.Add(time.Duration(m.TTLSeconds) * time.Second)
	remaining := expiry.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the message must be treated as expired. A
// ttl of zero expires immediately.
func (m Message) Expired(now time.Time) bool {
	return m.Remaining(now) == 0
}

func (m Message) IsOwn(agent AgentID) bool {
	return m.Sender == agent
}
