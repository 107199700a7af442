//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=../mocks/mock_transport.go -package=mocks
package transport

import (
	"context"

	"ghostroom/domain"
)

// Transport is the engine's view of the realtime connection. Connect
// may be called again after the event channel closes; retry pacing is
// the caller's concern, re-establishing the stream is the
// implementation's.
type Transport interface {
	// Connect opens the live connection and returns its event stream.
	// The stream always ends with a Disconnected event followed by
	// channel close.
	Connect(ctx context.Context) (<-chan Event, error)

	// Join announces this agent to the room. The server answers with
	// a Joined event on the stream.
	Join(ctx context.Context, token domain.RoomToken, agent domain.AgentID) error

	SendMessage(ctx context.Context, msg OutboundMessage) error
	SendImage(ctx context.Context, img OutboundImage) error

	// Close tears the connection down; safe to call when not
	// connected.
	Close() error
}
