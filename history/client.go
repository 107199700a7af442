// Package history fetches a room's persisted message batch and
// normalizes it into session log entries. A history failure is never
// fatal to a session: the engine proceeds with an empty or partial log
// and full live capability.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"ghostroom/domain"
	"ghostroom/encryption"
)

// ErrorKind classifies why a history fetch failed, so the UI can
// distinguish "room has no history" from "backend is down".
type ErrorKind string

const (
	KindNotFound ErrorKind = "not-found"
	KindServer   ErrorKind = "server-error"
	KindTimeout  ErrorKind = "timeout"
	KindNetwork  ErrorKind = "network"
)

// Error is a classified, non-fatal history failure.
type Error struct {
	Kind   ErrorKind
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("history %s: HTTP %d: %s", e.Kind, e.Status, e.Body)
	}
	return fmt.Sprintf("history %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// rawMessage mirrors one record of the backend's history response.
type rawMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
	TTL       int    `json:"ttl"`
	Message   string `json:"message"`
	Caption   string `json:"caption"`
	Type      string `json:"type"`
	ImageData string `json:"imageData"`
}

type historyResponse struct {
	Messages []rawMessage `json:"messages"`
}

// Client reads the room history endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

// NewClient builds a history client for the given backend base URL.
// The timeout bounds each fetch on the client side, independently of
// any server behavior.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		log:     log,
	}
}

// Fetch retrieves and decrypts the room's message batch. Server order
// is preserved; no re-sorting by timestamp. A record whose decryption
// fails degrades to its raw or sentinel value instead of being
// dropped, so one bad record never hides the rest.
func (c *Client) Fetch(ctx context.Context, token domain.RoomToken, key *encryption.RoomKey) ([]domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/room/%s/messages", c.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := KindServer
		if resp.StatusCode == http.StatusNotFound {
			kind = KindNotFound
		}
		return nil, &Error{Kind: kind, Status: resp.StatusCode, Body: string(body)}
	}

	var payload historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Kind: KindServer, Status: resp.StatusCode, Err: err, Body: "invalid history payload"}
	}

	messages := lo.Map(payload.Messages, func(raw rawMessage, _ int) domain.Message {
		return fromRawMessage(raw, key)
	})

	c.log.Debug("History fetched", "room", token, "messages", len(messages))
	return messages, nil
}

// fromRawMessage decrypts the displayable text of one record: the
// body for text messages, only the optional caption for images.
func fromRawMessage(raw rawMessage, key *encryption.RoomKey) domain.Message {
	msg := domain.Message{
		ID:         raw.ID,
		Kind:       domain.KindText,
		Sender:     domain.AgentID(raw.Sender),
		Timestamp:  time.UnixMilli(raw.Timestamp),
		TTLSeconds: raw.TTL,
	}

	if raw.Type == string(domain.KindImage) {
		msg.Kind = domain.KindImage
		msg.ImageData = raw.ImageData
		if raw.Caption != "" {
			msg.Body, _ = encryption.Decrypt(raw.Caption, key)
		}
		return msg
	}

	msg.Body, _ = encryption.Decrypt(raw.Message, key)
	return msg
}
