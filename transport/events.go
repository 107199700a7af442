// Package transport carries the room's realtime traffic. Inbound
// traffic is modeled as a single event sum type consumed by one
// dispatcher in the session engine, so the whole transition table
// lives in one place and is testable without a live connection.
package transport

import "ghostroom/domain"

// Event is one inbound occurrence on the live connection.
type Event interface {
	event()
}

// Joined acknowledges a join request. Participants replaces, never
// appends to, the session's participant set.
type Joined struct {
	Participants []domain.AgentID
}

type ParticipantJoined struct {
	Agent domain.AgentID
}

type ParticipantLeft struct {
	Agent domain.AgentID
}

// NewMessage carries a server-echoed message, including the sender's
// own messages: the echo is what puts a locally-authored message into
// the log.
type NewMessage struct {
	Wire WireMessage
}

type MessageExpired struct {
	MessageID string
}

// ServerError is a room-scoped error pushed by the server; it does
// not terminate the connection.
type ServerError struct {
	Message string
}

// DisconnectReason distinguishes a dropped transport from a
// server-initiated close.
type DisconnectReason string

const (
	ReasonTransportDrop DisconnectReason = "transport-drop"
	ReasonServerClosed  DisconnectReason = "server-closed"
)

// Disconnected is always the final event on a connection's stream;
// the event channel is closed right after it.
type Disconnected struct {
	Reason DisconnectReason
	Err    error
}

func (Joined) event()            {}
func (ParticipantJoined) event() {}
func (ParticipantLeft) event()   {}
func (NewMessage) event()        {}
func (MessageExpired) event()    {}
func (ServerError) event()       {}
func (Disconnected) event()      {}

// WireMessage mirrors the payload of a new-message event.
type WireMessage struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Caption   string `json:"caption"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
	TTL       int    `json:"ttl"`
	Type      string `json:"type"`
	ImageData string `json:"imageData"`
}

// OutboundMessage is the payload of a send-message request.
type OutboundMessage struct {
	RoomToken string `json:"roomToken"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	TTL       int    `json:"ttl"`
}

// OutboundImage is the payload of a send-image request. The caption
// travels encrypted like message text; the image bytes do not.
type OutboundImage struct {
	RoomToken string `json:"roomToken"`
	ImageData string `json:"imageData"`
	Caption   string `json:"caption"`
	Sender    string `json:"sender"`
	TTL       int    `json:"ttl"`
}
