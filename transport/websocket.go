package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ghostroom/domain"
)

const (
	writeTimeout    = 10 * time.Second
	eventBufferSize = 64
)

// frame is the envelope of every websocket message in both
// directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WebSocket is the gorilla/websocket implementation of Transport.
// A single writer lock serializes outbound frames; the read loop runs
// in its own goroutine and owns the event channel.
type WebSocket struct {
	endpoint string
	log      *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket builds a transport for the backend base URL
// (http/https is rewritten to ws/wss; the room socket lives at /ws).
func NewWebSocket(baseURL string, log *slog.Logger) (*WebSocket, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("backend url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return &WebSocket{endpoint: u.String(), log: log}, nil
}

func (t *WebSocket) Connect(ctx context.Context) (<-chan Event, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.endpoint, err)
	}

	t.mu.Lock()
	// A reconnect must not leak the previous socket.
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn = conn
	t.mu.Unlock()

	events := make(chan Event, eventBufferSize)
	go t.readLoop(conn, events)
	return events, nil
}

// readLoop decodes inbound frames until the connection dies, then
// emits a final Disconnected event and closes the stream.
func (t *WebSocket) readLoop(conn *websocket.Conn, events chan<- Event) {
	defer close(events)
	defer conn.Close()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			events <- Disconnected{Reason: classifyClose(err), Err: err}
			return
		}

		evt, err := decodeFrame(f)
		if err != nil {
			t.log.Warn("Dropping undecodable frame", "event", f.Event, "error", err)
			continue
		}
		if evt != nil {
			events <- evt
		}
	}
}

func decodeFrame(f frame) (Event, error) {
	switch f.Event {
	case "room-joined":
		var data struct {
			Participants []string `json:"participants"`
		}
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, err
		}
		participants := make([]domain.AgentID, len(data.Participants))
		for i, p := range data.Participants {
			participants[i] = domain.AgentID(p)
		}
		return Joined{Participants: participants}, nil

	case "participant-joined":
		var data struct {
			AgentID string `json:"agentId"`
		}
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, err
		}
		return ParticipantJoined{Agent: domain.AgentID(data.AgentID)}, nil

	case "participant-left":
		var data struct {
			AgentID string `json:"agentId"`
		}
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, err
		}
		return ParticipantLeft{Agent: domain.AgentID(data.AgentID)}, nil

	case "new-message":
		var wire WireMessage
		if err := json.Unmarshal(f.Data, &wire); err != nil {
			return nil, err
		}
		return NewMessage{Wire: wire}, nil

	case "message-expired":
		var data struct {
			MessageID string `json:"messageId"`
		}
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, err
		}
		return MessageExpired{MessageID: data.MessageID}, nil

	case "error":
		var data struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, err
		}
		return ServerError{Message: data.Message}, nil
	}

	// Unknown frames are ignored so the server can evolve.
	return nil, nil
}

func classifyClose(err error) DisconnectReason {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ReasonServerClosed
	}
	return ReasonTransportDrop
}

func (t *WebSocket) Join(ctx context.Context, token domain.RoomToken, agent domain.AgentID) error {
	return t.write(ctx, "join-room", map[string]string{
		"roomToken": string(token),
		"agentId":   string(agent),
	})
}

func (t *WebSocket) SendMessage(ctx context.Context, msg OutboundMessage) error {
	return t.write(ctx, "send-message", msg)
}

func (t *WebSocket) SendImage(ctx context.Context, img OutboundImage) error {
	return t.write(ctx, "send-image", img)
}

// write serializes one outbound frame under the writer lock with a
// bounded deadline, so a stalled peer cannot wedge senders.
func (t *WebSocket) write(ctx context.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("transport not connected")
	}

	deadline := time.Now().Add(writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = t.conn.SetWriteDeadline(deadline)

	return t.conn.WriteJSON(frame{Event: event, Data: payload})
}

func (t *WebSocket) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
