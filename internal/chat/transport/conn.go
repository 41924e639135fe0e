package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/polyglot.chat/internal/chat/domain"
	"github.com/louisbranch/polyglot.chat/internal/platform/timeouts"
)

const (
	defaultReconnectAttempts = 5
	defaultEventBuffer       = 64
)

// ErrNotConnected indicates a send was attempted without a live transport.
var ErrNotConnected = errors.New("transport is not connected")

// State describes the connection lifecycle.
type State int

// Connection states. Exactly one manager is live per session.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config defines the inputs for the transport boundary.
type Config struct {
	// ServerURL is the chat backend base URL, e.g. http://localhost:5000.
	ServerURL string
	// ReconnectAttempts bounds redials after an unexpected drop.
	ReconnectAttempts int
	// ReconnectDelay is the fixed pause between redial attempts.
	ReconnectDelay time.Duration
	// DialTimeout bounds transport establishment, handshake included.
	DialTimeout time.Duration
	// EventBuffer sizes the normalized inbound event channel.
	EventBuffer int
}

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Manager owns the single live WebSocket connection for a session.
//
// All outbound events funnel through Send; inbound frames are normalized into
// typed events and delivered in arrival order on the Events channel.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	conn     *websocket.Conn
	closing  bool
	userID   string
	username string

	writeMu sync.Mutex
	enc     *json.Encoder

	events chan Event
}

// New builds a transport manager for one session.
func New(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, errors.New("server url is required")
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = timeouts.ReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = timeouts.Dial
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	return &Manager{
		cfg:    cfg,
		events: make(chan Event, cfg.EventBuffer),
	}, nil
}

// Events returns the ordered inbound event channel.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect establishes the transport for the given identity. It is idempotent:
// when a live or in-flight connection already exists it returns without
// opening a second one.
func (m *Manager) Connect(ctx context.Context, userID, username string) error {
	userID = strings.TrimSpace(userID)
	username = strings.TrimSpace(username)
	if userID == "" || username == "" {
		return errors.New("user id and username are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.closing = false
	m.userID = userID
	m.username = username
	m.mu.Unlock()

	conn, err := m.dial(userID, username)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		return fmt.Errorf("dial chat server: %w", err)
	}

	if !m.adopt(conn) {
		// Disconnect won the race; honor the teardown.
		return nil
	}
	m.events <- Event{Kind: KindConnected}
	return nil
}

// Disconnect closes the transport and suppresses reconnection. It is safe to
// call when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	m.writeMu.Lock()
	m.enc = nil
	m.writeMu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Send writes one client→server frame. It is the only outbound surface; no
// component writes to the connection directly.
func (m *Manager) Send(event string, payload any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.enc == nil {
		return ErrNotConnected
	}
	if err := m.enc.Encode(frame{Event: event, Payload: raw}); err != nil {
		return fmt.Errorf("write %s frame: %w", event, err)
	}
	return nil
}

func (m *Manager) dial(userID, username string) (*websocket.Conn, error) {
	base := strings.TrimRight(strings.TrimSpace(m.cfg.ServerURL), "/")
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws"

	query := url.Values{}
	query.Set("userId", userID)
	query.Set("username", username)

	cfg, err := websocket.NewConfig(wsURL+"?"+query.Encode(), base)
	if err != nil {
		return nil, fmt.Errorf("build websocket config: %w", err)
	}

	raw, err := net.DialTimeout("tcp", hostPort(cfg.Location), m.cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Location.Host, err)
	}
	// The handshake shares the dial budget; cleared once established.
	if err := raw.SetDeadline(time.Now().Add(m.cfg.DialTimeout)); err != nil {
		raw.Close()
		return nil, fmt.Errorf("set handshake deadline: %w", err)
	}

	netConn := raw
	if cfg.Location.Scheme == "wss" {
		netConn = tls.Client(raw, &tls.Config{ServerName: cfg.Location.Hostname()})
	}

	conn, err := websocket.NewClient(cfg, netConn)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}
	if err := raw.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clear handshake deadline: %w", err)
	}
	return conn, nil
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "wss" {
		return u.Host + ":443"
	}
	return u.Host + ":80"
}

// adopt installs conn as the live connection. It reports false when a
// disconnect raced ahead, in which case conn is closed instead.
func (m *Manager) adopt(conn *websocket.Conn) bool {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		conn.Close()
		return false
	}
	m.conn = conn
	m.state = StateConnected
	m.writeMu.Lock()
	m.enc = json.NewEncoder(conn)
	m.writeMu.Unlock()
	m.mu.Unlock()

	go m.readLoop(conn)
	return true
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	decoder := json.NewDecoder(conn)
	for {
		var f frame
		if err := decoder.Decode(&f); err != nil {
			break
		}
		m.dispatch(f)
	}

	m.mu.Lock()
	if m.closing || m.conn != conn {
		// Deliberate disconnect, or a newer connection already took over.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	m.writeMu.Lock()
	m.enc = nil
	m.writeMu.Unlock()

	m.events <- Event{Kind: KindDisconnected}
	m.redial()
}

// redial retries the transport a bounded number of times with a fixed delay,
// then reports the drop as terminal.
func (m *Manager) redial() {
	for attempt := 1; attempt <= m.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(m.cfg.ReconnectDelay)

		m.mu.Lock()
		if m.closing {
			m.mu.Unlock()
			return
		}
		m.state = StateConnecting
		userID := m.userID
		username := m.username
		m.mu.Unlock()

		conn, err := m.dial(userID, username)
		if err != nil {
			log.Printf("transport: reconnect attempt %d/%d failed: %v", attempt, m.cfg.ReconnectAttempts, err)
			m.mu.Lock()
			m.state = StateDisconnected
			m.mu.Unlock()
			continue
		}

		if !m.adopt(conn) {
			return
		}
		m.events <- Event{Kind: KindConnected}
		return
	}
	m.events <- Event{Kind: KindConnectionLost}
}

func (m *Manager) dispatch(f frame) {
	switch f.Event {
	case eventReceiveMessage:
		var msg domain.Message
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			log.Printf("transport: invalid %s payload: %v", f.Event, err)
			return
		}
		m.events <- Event{Kind: KindMessage, Message: msg}
	case eventUserJoined:
		var payload presencePayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			log.Printf("transport: invalid %s payload: %v", f.Event, err)
			return
		}
		m.events <- Event{Kind: KindUserJoined, Username: payload.Username, OnlineCount: payload.OnlineCount}
	case eventUserLeft:
		var payload presencePayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			log.Printf("transport: invalid %s payload: %v", f.Event, err)
			return
		}
		m.events <- Event{Kind: KindUserLeft, Username: payload.Username, OnlineCount: payload.OnlineCount}
	case eventTyping:
		var payload typingEventPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			log.Printf("transport: invalid %s payload: %v", f.Event, err)
			return
		}
		m.events <- Event{Kind: KindTyping, Username: payload.Username}
	case eventStopTyping:
		var payload typingEventPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			log.Printf("transport: invalid %s payload: %v", f.Event, err)
			return
		}
		m.events <- Event{Kind: KindStopTyping, Username: payload.Username}
	case eventOnlineUsers:
		var payload onlineUsersPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			log.Printf("transport: invalid %s payload: %v", f.Event, err)
			return
		}
		m.events <- Event{Kind: KindOnlineCount, OnlineCount: payload.Count}
	default:
		log.Printf("transport: unsupported server event %q", f.Event)
	}
}
