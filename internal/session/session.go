// Package session owns the persistent realtime connection: dialing,
// heartbeat, fixed-delay reconnection and raw frame transport. It knows
// nothing about message semantics; decoded frames go to a single registered
// consumer.
package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"panelchat/internal/auth"
	"panelchat/internal/models"
	"panelchat/pkg/logger"
)

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// ErrNotConnected is returned by Send while the session is not open.
var ErrNotConnected = fmt.Errorf("session not connected")

type FrameHandler func(models.Event)

type StateListener func(State)

type Config struct {
	URL               string
	Token             string
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
}

// Session maintains at most one live connection at a time. A generation
// counter fences every pump goroutine: once a connection is superseded its
// pumps can no longer mutate session state or deliver frames.
type Session struct {
	cfg    Config
	dialer *websocket.Dialer

	onFrame FrameHandler
	onState StateListener

	mu                sync.Mutex
	state             State
	conn              *websocket.Conn
	send              chan []byte
	generation        uint64
	lastActivity      time.Time
	reconnectAttempts int
	reconnectTimer    *time.Timer
	closed            bool
}

func New(cfg Config) *Session {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Session{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		state:  StateClosed,
	}
}

// OnFrame registers the single downstream consumer for decoded inbound
// frames. Must be called before Connect.
func (s *Session) OnFrame(handler FrameHandler) {
	s.onFrame = handler
}

// OnStateChange registers a listener invoked on every Open/Closed
// transition, so dependent components can reflect local online status.
// Must be called before Connect.
func (s *Session) OnStateChange(listener StateListener) {
	s.onState = listener
}

// Connect establishes the connection, authenticated with the configured
// bearer token as a query parameter. A missing token or a handshake
// rejection yields *auth.AuthError and no reconnect is scheduled; any
// other failure schedules one reconnect attempt after the fixed delay.
func (s *Session) Connect() error {
	if s.cfg.Token == "" {
		return &auth.AuthError{Reason: "missing token"}
	}

	endpoint, err := s.endpoint()
	if err != nil {
		return fmt.Errorf("invalid realtime URL: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session torn down")
	}
	// Discard any previous handle before attempting a new one.
	s.dropConnLocked()
	s.state = StateConnecting
	s.mu.Unlock()

	conn, resp, err := s.dialer.Dial(endpoint, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			s.setState(StateClosed)
			return &auth.AuthError{Reason: fmt.Sprintf("handshake rejected with status %d", resp.StatusCode)}
		}
		s.setState(StateClosed)
		s.scheduleReconnect()
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return fmt.Errorf("session torn down")
	}
	s.generation++
	generation := s.generation
	s.conn = conn
	s.send = make(chan []byte, sendBufferSize)
	s.state = StateOpen
	s.lastActivity = time.Now()
	s.reconnectAttempts = 0
	send := s.send
	s.mu.Unlock()

	s.notifyState(StateOpen)
	logger.Info("Realtime session connected to %s", s.cfg.URL)

	go s.readPump(conn, generation)
	go s.writePump(conn, send)

	return nil
}

// Send serializes and transmits one event. Returns ErrNotConnected while
// the session is not open; frames are never queued across connections.
func (s *Session) Send(event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	// The push happens under the lock so the handle cannot be discarded
	// (and the channel closed) between the state check and the send.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrNotConnected
	}
	select {
	case s.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// State reports the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity reports when the last inbound frame arrived.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// ReconnectAttempts reports how many reconnects have been scheduled since
// the last successful connect.
func (s *Session) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectAttempts
}

// Close tears the session down for good: no further frames are delivered
// and no reconnect is attempted.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = StateClosing
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	conn := s.conn
	s.dropConnLocked()
	s.state = StateClosed
	s.mu.Unlock()

	if conn != nil {
		s.notifyState(StateClosed)
	}
	return nil
}

func (s *Session) endpoint() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", s.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readPump delivers inbound frames until the connection dies, then hands
// the failure to connectionLost. One read pump exists per connection.
func (s *Session) readPump(conn *websocket.Conn, generation uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error("Realtime read error: %v", err)
			}
			s.connectionLost(generation, err)
			return
		}

		s.mu.Lock()
		stale := generation != s.generation
		if !stale {
			s.lastActivity = time.Now()
		}
		handler := s.onFrame
		s.mu.Unlock()
		if stale {
			return
		}

		var event models.Event
		if err := json.Unmarshal(data, &event); err != nil {
			logger.Error("Dropping malformed frame: %v", err)
			continue
		}
		if handler != nil {
			handler(event)
		}
	}
}

// writePump owns all writes for one connection, including the heartbeat.
// It exits when the send channel closes or a write fails.
func (s *Session) writePump(conn *websocket.Conn, send chan []byte) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("Realtime write error: %v", err)
				return
			}

		case <-ticker.C:
			// Liveness is server-driven; a missing pong never forces a
			// reconnect here.
			ping, _ := json.Marshal(models.Event{Type: models.EventTypePing})
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}
}

// connectionLost handles an unexpected close or read error for the given
// connection generation. Superseded generations are ignored.
func (s *Session) connectionLost(generation uint64, err error) {
	s.mu.Lock()
	if generation != s.generation || s.closed || s.conn == nil {
		// Superseded handle, or one already discarded by a newer connect.
		s.mu.Unlock()
		return
	}
	s.dropConnLocked()
	s.state = StateClosed
	authRejected := websocket.IsCloseError(err, websocket.ClosePolicyViolation)
	s.mu.Unlock()

	s.notifyState(StateClosed)

	if authRejected {
		logger.Error("Realtime session rejected by server, not reconnecting: %v", err)
		return
	}
	s.scheduleReconnect()
}

// scheduleReconnect arms a single fixed-delay reconnect attempt, replacing
// any previously armed one so attempts never stack up.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectAttempts++
	attempt := s.reconnectAttempts
	s.reconnectTimer = time.AfterFunc(s.cfg.ReconnectDelay, func() {
		logger.Info("Reconnecting realtime session (attempt %d)", attempt)
		if err := s.Connect(); err != nil {
			logger.Error("Reconnect failed: %v", err)
		}
	})
}

// dropConnLocked discards the current connection handle, if any. Closing
// the send channel stops the write pump; closing the conn stops the read
// pump. Callers must hold s.mu.
func (s *Session) dropConnLocked() {
	if s.conn != nil {
		close(s.send)
		s.conn.Close()
		s.conn = nil
		s.send = nil
	}
}

// setState records a transition that happened before the connection ever
// opened; listeners only hear about Open/Closed flips of a live handle.
func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) notifyState(state State) {
	if s.onState != nil {
		s.onState(state)
	}
}
