// Package session drives one room membership: crypto readiness,
// socket lifecycle, reconciliation of fetched history with the live
// stream, dedup, TTL expiry, and the outgoing send pipeline.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ghostroom/domain"
	"ghostroom/encryption"
	"ghostroom/errors"
	"ghostroom/imaging"
	"ghostroom/moderation"
	"ghostroom/transport"

	"github.com/samber/lo"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseDerivingKey  Phase = "deriving-key"
	PhaseSyncing      Phase = "syncing"
	PhaseActive       Phase = "active"
	PhaseReconnecting Phase = "reconnecting"
	PhaseLeft         Phase = "left"
)

// State is a point-in-time snapshot for the UI layer. The error
// fields are orthogonal flags, not phases: a session can be Active
// with encryption disabled and a history error at the same time.
type State struct {
	Phase             Phase
	Connected         bool
	EncryptionEnabled bool
	CryptoUnavailable bool
	ConnectionError   string
	HistoryError      string
	Messages          []domain.Message
	Participants      []domain.AgentID
}

// HistoryFetcher is the engine's view of the history store.
type HistoryFetcher interface {
	Fetch(ctx context.Context, token domain.RoomToken, key *encryption.RoomKey) ([]domain.Message, error)
}

// SendReceipt tells the caller what actually left the client: whether
// the payload went out encrypted (fail-open downgrades are surfaced,
// not swallowed) and what the filter did to it.
type SendReceipt struct {
	Encrypted bool
	Filtered  string
	Words     []string
	Warning   string
}

// Config carries the per-session knobs. Zero values fall back to the
// defaults of the transmit path.
type Config struct {
	Token             domain.RoomToken
	Filter            *moderation.Filter
	SweepInterval     time.Duration
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
	DefaultTTLSeconds int
}

const (
	defaultSweepInterval = time.Second
	defaultReconnectMin  = time.Second
	defaultReconnectMax  = 30 * time.Second
	defaultTTLSeconds    = 86400
	updatesBufferSize    = 256
)

// Engine is the session state machine. All log and participant
// mutation happens under one lock, driven by the Run loop's four
// triggers: a transport event, the completed history fetch, a sweep
// tick, or a caller-invoked send.
type Engine struct {
	cfg       Config
	log       *slog.Logger
	transport transport.Transport
	history   HistoryFetcher

	agent domain.AgentID

	// key is written once during Run's derivation step, before any
	// reader exists, and read-only afterwards.
	key *encryption.RoomKey

	mu                sync.Mutex
	phase             Phase
	connected         bool
	encryptionEnabled bool
	cryptoUnavailable bool
	connectionErr     string
	historyErr        string
	msgs              *messageLog
	participants      []domain.AgentID

	updates chan Update
}

// New validates the one fatal precondition (a token must exist) and
// generates the session's AgentID. Everything else can degrade; a
// missing token cannot.
func New(cfg Config, tr transport.Transport, hist HistoryFetcher, log *slog.Logger) (*Engine, error) {
	if cfg.Token == "" {
		return nil, errors.ErrEmptyToken
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.ReconnectMinDelay <= 0 {
		cfg.ReconnectMinDelay = defaultReconnectMin
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = defaultReconnectMax
	}
	if cfg.DefaultTTLSeconds <= 0 {
		cfg.DefaultTTLSeconds = defaultTTLSeconds
	}
	if cfg.Filter == nil {
		cfg.Filter, _ = moderation.NewFilter(nil, moderation.ModeReplace, log)
	}

	return &Engine{
		cfg:       cfg,
		log:       log,
		transport: tr,
		history:   hist,
		agent:     domain.GenerateAgentID(),
		phase:     PhaseIdle,
		msgs:      newMessageLog(),
		updates:   make(chan Update, updatesBufferSize),
	}, nil
}

func (e *Engine) AgentID() domain.AgentID {
	return e.agent
}

// Updates streams UI notifications. Best-effort: a slow consumer
// loses updates, never blocks the engine; Snapshot remains the source
// of truth. Closed when the session ends.
func (e *Engine) Updates() <-chan Update {
	return e.updates
}

// Snapshot copies the visible session state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	participants := make([]domain.AgentID, len(e.participants))
	copy(participants, e.participants)

	return State{
		Phase:             e.phase,
		Connected:         e.connected,
		EncryptionEnabled: e.encryptionEnabled,
		CryptoUnavailable: e.cryptoUnavailable,
		ConnectionError:   e.connectionErr,
		HistoryError:      e.historyErr,
		Messages:          e.msgs.Snapshot(),
		Participants:      participants,
	}
}

type historyResult struct {
	messages []domain.Message
	err      error
}

// Run owns the session's resources: the socket, the pending history
// fetch, and the expiry ticker all live inside this call and are
// released together when it returns. It only errors on the caller's
// own cancellation.
func (e *Engine) Run(ctx context.Context) error {
	defer e.teardown()

	e.deriveKey()

	// History and socket are independent: neither blocks the other,
	// and the merge is keyed by message id whichever arrives first.
	histCh := make(chan historyResult, 1)
	go func() {
		messages, err := e.history.Fetch(ctx, e.cfg.Token, e.key)
		histCh <- historyResult{messages: messages, err: err}
	}()

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	delay := e.cfg.ReconnectMinDelay
	for {
		events, err := e.connectAndJoin(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.setDisconnected(fmt.Sprintf("connect: %v", err))
			if done := e.waitRetry(ctx, delay, &histCh, ticker); done {
				return nil
			}
			delay = min(delay*2, e.cfg.ReconnectMaxDelay)
			continue
		}
		joined, done := e.eventLoop(ctx, events, &histCh, ticker)
		if done {
			return nil
		}
		// The backoff resets only once the server acknowledged the
		// join, so an accept-then-drop server cannot induce a hot
		// reconnect cycle.
		if joined {
			delay = e.cfg.ReconnectMinDelay
		}
		if done := e.waitRetry(ctx, delay, &histCh, ticker); done {
			return nil
		}
		delay = min(delay*2, e.cfg.ReconnectMaxDelay)
	}
}

// deriveKey fixes encryptionEnabled for the rest of the session. A
// missing crypto platform degrades to plaintext mode; it never
// prevents joining.
func (e *Engine) deriveKey() {
	e.setPhase(PhaseDerivingKey)

	if !encryption.Available() {
		e.log.Warn("Crypto primitives unavailable, proceeding without encryption")
		e.setCryptoUnavailable()
		return
	}

	key, err := encryption.DeriveRoomKey(e.cfg.Token)
	if err != nil {
		e.log.Warn("Key derivation failed, proceeding without encryption", "error", err)
		e.setCryptoUnavailable()
		return
	}

	e.key = key
	e.mu.Lock()
	e.encryptionEnabled = true
	e.mu.Unlock()
	e.log.Info("Encryption enabled with shared room key")
}

func (e *Engine) connectAndJoin(ctx context.Context) (<-chan transport.Event, error) {
	e.mu.Lock()
	if e.phase == PhaseDerivingKey || e.phase == PhaseIdle {
		e.phase = PhaseSyncing
	}
	e.mu.Unlock()

	events, err := e.transport.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.transport.Join(ctx, e.cfg.Token, e.agent); err != nil {
		_ = e.transport.Close()
		return nil, err
	}

	e.mu.Lock()
	e.connected = true
	e.connectionErr = ""
	e.mu.Unlock()
	e.notify(StatusChanged{})

	return events, nil
}

// eventLoop consumes the stream until it closes (reconnect) or the
// caller cancels (session over). It reports whether the server
// acknowledged the join and whether the session is over.
func (e *Engine) eventLoop(ctx context.Context, events <-chan transport.Event, histCh *chan historyResult, ticker *time.Ticker) (joined, done bool) {
	for {
		select {
		case <-ctx.Done():
			return joined, true
		case res := <-*histCh:
			e.applyHistory(res)
			*histCh = nil
		case now := <-ticker.C:
			e.sweep(now)
		case evt, ok := <-events:
			if !ok {
				return joined, false
			}
			if _, ok := evt.(transport.Joined); ok {
				joined = true
			}
			e.dispatch(evt)
		}
	}
}

// waitRetry keeps history merge and expiry alive during reconnect
// backoff. Returns true when the session is over.
func (e *Engine) waitRetry(ctx context.Context, delay time.Duration, histCh *chan historyResult, ticker *time.Ticker) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-timer.C:
			return false
		case res := <-*histCh:
			e.applyHistory(res)
			*histCh = nil
		case now := <-ticker.C:
			e.sweep(now)
		}
	}
}

// dispatch is the single place live events mutate session state.
// Every handler is idempotent: duplicate ids collapse, absent ids
// no-op.
func (e *Engine) dispatch(evt transport.Event) {
	switch evt := evt.(type) {
	case transport.Joined:
		e.mu.Lock()
		// The join response replaces the participant set, it never
		// appends to it.
		e.participants = append(e.participants[:0:0], evt.Participants...)
		e.phase = PhaseActive
		e.connected = true
		e.mu.Unlock()
		e.notify(ParticipantsChanged{})
		e.notify(StatusChanged{})

	case transport.ParticipantJoined:
		e.mu.Lock()
		if !lo.Contains(e.participants, evt.Agent) {
			e.participants = append(e.participants, evt.Agent)
		}
		e.mu.Unlock()
		e.notify(ParticipantsChanged{})

	case transport.ParticipantLeft:
		e.mu.Lock()
		e.participants = lo.Filter(e.participants, func(a domain.AgentID, _ int) bool {
			return a != evt.Agent
		})
		e.mu.Unlock()
		e.notify(ParticipantsChanged{})

	case transport.NewMessage:
		msg := e.fromWire(evt.Wire)
		e.mu.Lock()
		added := e.msgs.Append(msg)
		e.mu.Unlock()
		if added {
			e.notify(MessageAdded{Message: msg})
		}

	case transport.MessageExpired:
		e.mu.Lock()
		removed := e.msgs.Remove(evt.MessageID)
		e.mu.Unlock()
		if removed {
			e.notify(MessageRemoved{ID: evt.MessageID})
		}

	case transport.ServerError:
		e.log.Warn("Room server error", "message", evt.Message)

	case transport.Disconnected:
		reason := string(evt.Reason)
		if evt.Err != nil {
			reason = fmt.Sprintf("%s: %v", evt.Reason, evt.Err)
		}
		// The log and participant set survive the gap; future
		// history/live reconciliation fills it, the engine invents
		// nothing.
		e.setDisconnected(reason)
	}
}

// applyHistory merges the fetched batch into the log. Live messages
// that raced ahead of the fetch win by id; history never reorders
// what is already displayed.
func (e *Engine) applyHistory(res historyResult) {
	if res.err != nil {
		e.log.Warn("History fetch failed, continuing with live messages only", "error", res.err)
		e.mu.Lock()
		e.historyErr = res.err.Error()
		e.mu.Unlock()
		e.notify(StatusChanged{})
		return
	}

	var added []domain.Message
	e.mu.Lock()
	for _, msg := range res.messages {
		if e.msgs.Append(msg) {
			added = append(added, msg)
		}
	}
	e.mu.Unlock()

	for _, msg := range added {
		e.notify(MessageAdded{Message: msg})
	}
	e.log.Debug("History merged", "fetched", len(res.messages), "added", len(added))
}

func (e *Engine) sweep(now time.Time) {
	e.mu.Lock()
	expired := e.msgs.SweepExpired(now)
	e.mu.Unlock()

	for _, id := range expired {
		e.notify(MessageRemoved{ID: id})
	}
}

// Send pushes one text message through filter, cipher, and transport.
// Local rejections (not connected, empty, policy) happen before any
// I/O. The message is not appended to the log here: the server echo
// is the single source of truth and carries the authoritative id.
func (e *Engine) Send(ctx context.Context, text string, ttlSeconds int) (SendReceipt, error) {
	if strings.TrimSpace(text) == "" {
		return SendReceipt{}, errors.ErrEmptyMessage
	}
	if !e.isConnected() {
		return SendReceipt{}, errors.ErrNotConnected
	}

	verdict := e.cfg.Filter.Apply(text)
	if verdict.Blocked {
		return SendReceipt{Words: verdict.Words}, fmt.Errorf("%w: %s", errors.ErrMessageBlocked, verdict.Reason)
	}
	if verdict.Warning != "" {
		e.log.Warn("Message sent despite filter warning", "words", verdict.Words)
	}

	env := encryption.Encrypt(verdict.Filtered, e.sessionKey())
	receipt := SendReceipt{
		Encrypted: env.Encrypted,
		Filtered:  verdict.Filtered,
		Words:     verdict.Words,
		Warning:   verdict.Warning,
	}

	err := e.transport.SendMessage(ctx, transport.OutboundMessage{
		RoomToken: string(e.cfg.Token),
		Message:   env.Text,
		Sender:    string(e.agent),
		TTL:       e.ttlOrDefault(ttlSeconds),
	})
	return receipt, err
}

// SendImage transmits an encoded image. The caption, if present, is
// filtered and encrypted exactly like message text; the image bytes
// are not encrypted by this engine.
func (e *Engine) SendImage(ctx context.Context, img imaging.Encoded, caption string, ttlSeconds int) (SendReceipt, error) {
	if img.Data == "" {
		return SendReceipt{}, errors.ErrEmptyMessage
	}
	if !e.isConnected() {
		return SendReceipt{}, errors.ErrNotConnected
	}

	// The image bytes are never encrypted, so a captionless send
	// reports the session's encryption state rather than a plaintext
	// downgrade that did not happen.
	receipt := SendReceipt{Encrypted: e.sessionKey() != nil}
	wireCaption := ""
	if caption != "" {
		verdict := e.cfg.Filter.Apply(caption)
		if verdict.Blocked {
			return SendReceipt{Words: verdict.Words}, fmt.Errorf("%w: %s", errors.ErrMessageBlocked, verdict.Reason)
		}
		env := encryption.Encrypt(verdict.Filtered, e.sessionKey())
		wireCaption = env.Text
		receipt = SendReceipt{
			Encrypted: env.Encrypted,
			Filtered:  verdict.Filtered,
			Words:     verdict.Words,
			Warning:   verdict.Warning,
		}
	}

	err := e.transport.SendImage(ctx, transport.OutboundImage{
		RoomToken: string(e.cfg.Token),
		ImageData: img.Data,
		Caption:   wireCaption,
		Sender:    string(e.agent),
		TTL:       e.ttlOrDefault(ttlSeconds),
	})
	return receipt, err
}

// fromWire decrypts the displayable text of a live message: the body
// for text, only the caption for images.
func (e *Engine) fromWire(wire transport.WireMessage) domain.Message {
	msg := domain.Message{
		ID:         wire.ID,
		Kind:       domain.KindText,
		Sender:     domain.AgentID(wire.Sender),
		Timestamp:  time.UnixMilli(wire.Timestamp),
		TTLSeconds: wire.TTL,
	}

	if wire.Type == string(domain.KindImage) {
		msg.Kind = domain.KindImage
		msg.ImageData = wire.ImageData
		if wire.Caption != "" {
			msg.Body, _ = encryption.Decrypt(wire.Caption, e.key)
		}
		return msg
	}

	msg.Body, _ = encryption.Decrypt(wire.Message, e.key)
	return msg
}

func (e *Engine) ttlOrDefault(ttlSeconds int) int {
	if ttlSeconds < 0 {
		return e.cfg.DefaultTTLSeconds
	}
	return ttlSeconds
}

func (e *Engine) sessionKey() *encryption.RoomKey {
	e.mu.Lock()
	enabled := e.encryptionEnabled
	e.mu.Unlock()
	if !enabled {
		return nil
	}
	return e.key
}

func (e *Engine) isConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *Engine) setPhase(phase Phase) {
	e.mu.Lock()
	e.phase = phase
	e.mu.Unlock()
	e.notify(StatusChanged{})
}

func (e *Engine) setCryptoUnavailable() {
	e.mu.Lock()
	e.cryptoUnavailable = true
	e.mu.Unlock()
	e.notify(StatusChanged{})
}

func (e *Engine) setDisconnected(reason string) {
	e.mu.Lock()
	e.connected = false
	e.connectionErr = reason
	if e.phase == PhaseActive {
		e.phase = PhaseReconnecting
	}
	e.mu.Unlock()
	e.notify(StatusChanged{})
	e.log.Warn("Disconnected from room", "reason", reason)
}

func (e *Engine) teardown() {
	_ = e.transport.Close()
	e.mu.Lock()
	e.connected = false
	e.phase = PhaseLeft
	e.mu.Unlock()
	close(e.updates)
}
