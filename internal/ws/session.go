package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-sync/internal/observability"
)

// State is the lifecycle state of the server session.
type State int

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

var (
	ErrNotConnected = errors.New("session not connected")
	ErrNoCredential = errors.New("no credential set")
)

// controlWriteTimeout bounds pong replies sent from the read side.
const controlWriteTimeout = 10 * time.Second

// pingSentinel is the reserved outbound value translated into a
// protocol-level ping frame by the writer.
const pingSentinel = "PING"

// FrameHandler consumes inbound data frames.
type FrameHandler interface {
	HandleFrame(ctx context.Context, data []byte)
}

// Config holds session tuning knobs. Zero values fall back to the
// defaults applied by NewSession.
type Config struct {
	URL                string
	Origin             string
	UserAgent          string
	HeartbeatInterval  time.Duration
	LivenessMultiplier int
	DialTimeout        time.Duration
	ReconnectAttempts  int
	ReconnectDelay     time.Duration
	OutboundBuffer     int
}

// Session owns the websocket connection to the chat server. All frame
// writes go through a single writer goroutine fed by the outbound
// queue; heartbeats enter the same queue as the ping sentinel so they
// serialize with data frames.
type Session struct {
	cfg     Config
	dialer  Dialer
	handler FrameHandler

	mu           sync.Mutex
	state        State
	conn         Conn
	connID       string
	token        string
	outbound     chan []byte
	done         chan struct{}
	lastActivity time.Time

	onDown func(reason string)
}

// NewSession constructs a disconnected session.
func NewSession(cfg Config, dialer Dialer, handler FrameHandler) *Session {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.LivenessMultiplier <= 0 {
		cfg.LivenessMultiplier = 3
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = 5
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = 64
	}
	if dialer == nil {
		dialer = GorillaDialer{
			HandshakeTimeout: cfg.DialTimeout,
			Subprotocols:     []string{"chat"},
		}
	}
	return &Session{cfg: cfg, dialer: dialer, handler: handler}
}

// OnSessionDown registers a callback fired after an unexpected
// connection loss or liveness timeout.
func (s *Session) OnSessionDown(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDown = fn
}

// Status reports the current lifecycle state.
func (s *Session) Status() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect stores the credential, dials the server and starts the
// reader, writer and heartbeat goroutines. An empty credential reuses
// the stored one. Calling Connect while connecting or connected is a
// no-op.
func (s *Session) Connect(ctx context.Context, credential string) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	if credential != "" {
		s.token = credential
	}
	token := s.token
	if token == "" {
		s.mu.Unlock()
		return ErrNoCredential
	}
	s.state = StateConnecting
	s.mu.Unlock()
	observability.SetSessionState(int(StateConnecting))

	ctx, span := otel.Tracer("chat-sync/ws").Start(ctx, "session.connect")
	defer span.End()

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	if s.cfg.Origin != "" {
		header.Set("Origin", s.cfg.Origin)
	}
	if s.cfg.UserAgent != "" {
		header.Set("User-Agent", s.cfg.UserAgent)
	}

	conn, err := s.dialer.Dial(dialCtx, s.cfg.URL, header)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		observability.SetSessionState(int(StateDisconnected))
		observability.IncSessionEvent("dial_error")
		return err
	}

	s.mu.Lock()
	// A Disconnect while the dial was in flight wins; the fresh
	// connection must not resurrect the session.
	if s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		observability.IncSessionEvent("connect_aborted")
		log.Printf("connect aborted, session was disconnected during dial")
		return nil
	}
	s.conn = conn
	s.connID = newConnID()
	s.outbound = make(chan []byte, s.cfg.OutboundBuffer)
	s.done = make(chan struct{})
	s.lastActivity = time.Now()
	s.state = StateConnected
	outbound, done := s.outbound, s.done
	s.mu.Unlock()
	observability.SetSessionState(int(StateConnected))
	observability.IncSessionEvent("connect")
	log.Printf("session connected conn_id=%s url=%s", s.connID, s.cfg.URL)

	traceID := span.SpanContext().TraceID().String()
	_ = observability.PublishEvent(ctx, "session_events", observability.EventEnvelope{
		EventType: "session_events",
		EventName: "connect",
		Payload:   observability.SessionPayload(StateConnected.String(), s.connID, ""),
	}, observability.BuildHeaders(s.connID, traceID))

	conn.SetPongHandler(func(string) error {
		s.markActivity()
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		s.markActivity()
		// Runs on the read goroutine; the data writer owns
		// WriteMessage, so the pong must go out as a control write.
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteTimeout))
	})

	go s.readLoop(conn, done)
	go s.writeLoop(conn, outbound, done)
	go s.heartbeatLoop(done)
	return nil
}

// Disconnect tears down the connection and forgets the stored
// credential. Safe to call repeatedly and from any state.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	s.teardown("disconnect requested", false)
}

// Reconnect runs a bounded retry loop with a fixed delay between
// attempts. It is a no-op while connecting or connected.
func (s *Session) Reconnect(ctx context.Context, credential string) error {
	if s.Status() != StateDisconnected {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= s.cfg.ReconnectAttempts; attempt++ {
		observability.IncSessionEvent("reconnect_attempt")
		log.Printf("reconnect attempt %d/%d", attempt, s.cfg.ReconnectAttempts)
		if err := s.Connect(ctx, credential); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
	observability.IncSessionEvent("reconnect_exhausted")
	if lastErr == nil {
		lastErr = ErrNotConnected
	}
	return lastErr
}

// Send enqueues a data frame for the writer goroutine. It fails when
// the session is not connected or the queue is full.
func (s *Session) Send(payload []byte) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	outbound := s.outbound
	s.mu.Unlock()

	select {
	case outbound <- payload:
		return nil
	default:
		return errors.New("outbound queue full")
	}
}

// EnqueuePing queues a heartbeat without waiting for the ticker.
func (s *Session) EnqueuePing() error {
	return s.Send([]byte(pingSentinel))
}

func (s *Session) markActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) readLoop(conn Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncSessionEvent("read_error")
			}
			s.teardown(err.Error(), true)
			return
		}
		s.markActivity()
		if s.handler != nil {
			s.handler.HandleFrame(context.Background(), data)
		}
	}
}

func (s *Session) writeLoop(conn Conn, outbound chan []byte, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-outbound:
			var err error
			if string(payload) == pingSentinel {
				err = conn.WriteMessage(websocket.PingMessage, nil)
			} else {
				err = conn.WriteMessage(websocket.TextMessage, payload)
			}
			if err != nil {
				log.Printf("websocket write error: %v", err)
				observability.IncSessionEvent("write_error")
				s.teardown(err.Error(), true)
				return
			}
		}
	}
}

// heartbeatLoop queues a ping each interval and then checks liveness.
// A window of no inbound traffic, control frames included, longer than
// the multiplier times the interval declares the session dead. The
// check is a guess; a slow link can trip it.
func (s *Session) heartbeatLoop(done chan struct{}) {
	window := time.Duration(s.cfg.LivenessMultiplier) * s.cfg.HeartbeatInterval
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// A full queue means the writer is stalled, which is
			// exactly what the liveness check below must catch;
			// the loop only ends when the connection does.
			if err := s.EnqueuePing(); err != nil {
				log.Printf("heartbeat enqueue failed: %v", err)
			}
			s.mu.Lock()
			idle := time.Since(s.lastActivity)
			s.mu.Unlock()
			if idle > window {
				log.Printf("session liveness timeout after %s", idle)
				observability.IncSessionEvent("liveness_timeout")
				s.mu.Lock()
				s.token = ""
				s.mu.Unlock()
				s.teardown("liveness timeout", true)
				return
			}
		}
	}
}

// teardown transitions to disconnected exactly once per connection and
// fires the down callback for unexpected losses.
func (s *Session) teardown(reason string, unexpected bool) {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	done := s.done
	connID := s.connID
	s.conn = nil
	s.outbound = nil
	s.done = nil
	s.state = StateDisconnected
	onDown := s.onDown
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Close()
	}
	observability.SetSessionState(int(StateDisconnected))
	observability.IncSessionEvent("disconnect")
	log.Printf("session disconnected reason=%q", reason)
	_ = observability.PublishEvent(context.Background(), "session_events", observability.EventEnvelope{
		EventType: "session_events",
		EventName: "disconnect",
		Payload:   observability.SessionPayload(StateDisconnected.String(), connID, reason),
	}, observability.BuildHeaders(connID, ""))
	if unexpected && onDown != nil {
		onDown(reason)
	}
}
