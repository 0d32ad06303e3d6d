package talkwire

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// ============================================================================
// Connection state and events
// ============================================================================

// ConnState is the externally observable health of the realtime connection.
// Exactly one value holds at a time for the single connection instance.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// EventKind tags the variants the connection can emit.
type EventKind string

const (
	// EventFrame carries a decoded inbound envelope.
	EventFrame EventKind = "frame"
	// EventClosed reports an unsolicited connection drop. Intentional
	// teardown via Close does not emit it.
	EventClosed EventKind = "closed"
)

// Event is one item on the connection's consumer channel. Events are
// delivered in arrival order to a single consumer.
type Event struct {
	Kind     EventKind
	Envelope *Envelope
	Err      error
}

// ============================================================================
// Config
// ============================================================================

// DefaultReconnectDelay is the fixed wait before a reconnect attempt after an
// unsolicited drop.
const DefaultReconnectDelay = 3 * time.Second

// ConnConfig configures a Conn.
type ConnConfig struct {
	// BaseURL is the server's HTTP base URL; the websocket scheme is
	// derived from it (https becomes wss, http becomes ws).
	BaseURL string
	// Token is the session credential, passed as a query parameter.
	Token string
	// ReconnectDelay overrides DefaultReconnectDelay.
	ReconnectDelay time.Duration
	// Authorized reports whether the session is still logged in. Reconnects
	// are attempted only while it returns true. nil means always.
	Authorized func() bool
	// EventBuffer sizes the consumer channel. Defaults to 64.
	EventBuffer int
	Logger      *slog.Logger
}

func (c *ConnConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = 64
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ============================================================================
// Conn
// ============================================================================

// Conn owns the lifecycle of the persistent realtime connection: dialing,
// drop detection, and the reconnect timer. Inbound frames are decoded and
// handed to the single consumer of Events; a frame that fails to decode is
// logged and discarded, never fatal to the connection.
type Conn struct {
	cfg    ConnConfig
	logger *slog.Logger
	events chan Event

	mu         sync.Mutex
	state      ConnState
	sock       *websocket.Conn
	cancelRead context.CancelFunc
	retryTimer *time.Timer
	closed     bool // explicit Close; disables reconnect
}

// NewConn creates an unconnected Conn.
func NewConn(cfg ConnConfig) *Conn {
	cfg.defaults()
	return &Conn{
		cfg:    cfg,
		logger: cfg.Logger,
		events: make(chan Event, cfg.EventBuffer),
		state:  StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the consumer channel. It is never closed; consumers stop
// via their own context.
func (c *Conn) Events() <-chan Event { return c.events }

// wsURL derives the connection endpoint from the HTTP base URL.
func (c *Conn) wsURL() string {
	base := strings.Replace(strings.TrimRight(c.cfg.BaseURL, "/"), "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	if c.cfg.Token != "" {
		return base + "/ws?token=" + url.QueryEscape(c.cfg.Token)
	}
	return base + "/ws"
}

// Connect opens the realtime connection, tearing down any existing socket
// first. State moves to Connecting immediately, then Connected on a
// successful open or back to Disconnected on a dial failure. A dial failure
// also arms the reconnect timer, so callers may treat Connect as
// best-effort and ignore the returned error.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.stopRetryLocked()
	c.teardownLocked(websocket.StatusNormalClosure, "reconnecting")
	c.state = StateConnecting
	c.closed = false
	c.mu.Unlock()

	sock, _, err := websocket.Dial(ctx, c.wsURL(), nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.logger.Warn("realtime dial failed", "err", err)
		c.scheduleRetry()
		return fmt.Errorf("websocket dial: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.closed {
		// Close raced the dial; drop the fresh socket.
		c.mu.Unlock()
		cancel()
		sock.Close(websocket.StatusNormalClosure, "closed during dial")
		return nil
	}
	c.sock = sock
	c.cancelRead = cancel
	c.state = StateConnected
	c.mu.Unlock()

	go c.readLoop(readCtx, sock)
	return nil
}

// Send serializes frame and transmits it if the connection is live;
// otherwise it reports ErrNotConnected and performs no write.
func (c *Conn) Send(ctx context.Context, frame Frame) error {
	c.mu.Lock()
	sock := c.sock
	live := c.state == StateConnected
	c.mu.Unlock()
	if !live || sock == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if err := sock.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Close is the explicit, user-initiated teardown. It cancels any pending
// reconnect so a logout while a retry is in flight cannot resurrect the
// connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.stopRetryLocked()
	c.teardownLocked(websocket.StatusNormalClosure, "client close")
	c.mu.Unlock()
	return nil
}

// teardownLocked detaches and closes the current socket, if any.
// Callers hold c.mu.
func (c *Conn) teardownLocked(code websocket.StatusCode, reason string) {
	if c.cancelRead != nil {
		c.cancelRead()
		c.cancelRead = nil
	}
	if c.sock != nil {
		sock := c.sock
		c.sock = nil
		go sock.Close(code, reason)
	}
	c.state = StateDisconnected
}

// ----------------------------------------------------------------------------
// Read loop
// ----------------------------------------------------------------------------

func (c *Conn) readLoop(ctx context.Context, sock *websocket.Conn) {
	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			c.mu.Lock()
			stale := c.sock != sock // replaced by a newer Connect or torn down
			intentional := c.closed || stale
			if !stale {
				c.sock = nil
				c.cancelRead = nil
				c.state = StateDisconnected
			}
			c.mu.Unlock()
			if intentional {
				return
			}
			c.logger.Info("realtime connection dropped", "err", err)
			c.deliver(ctx, Event{Kind: EventClosed, Err: err})
			c.scheduleRetry()
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("discarding undecodable frame", "err", err)
			continue
		}
		c.deliver(ctx, Event{Kind: EventFrame, Envelope: &env})
	}
}

func (c *Conn) deliver(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// ----------------------------------------------------------------------------
// Reconnect policy
// ----------------------------------------------------------------------------

// scheduleRetry arms exactly one reconnect attempt after the fixed delay,
// provided the session is still authenticated and Close has not been called.
// Subsequent failures re-arm through the same path, so the connection keeps
// trying while logged in and stops immediately once logged out.
func (c *Conn) scheduleRetry() {
	if c.cfg.Authorized != nil && !c.cfg.Authorized() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.retryTimer != nil {
		return
	}
	c.logger.Info("scheduling reconnect", "delay", c.cfg.ReconnectDelay)
	c.retryTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		c.retryTimer = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if c.cfg.Authorized != nil && !c.cfg.Authorized() {
			return
		}
		// A failed attempt re-arms the timer from inside Connect.
		_ = c.Connect(context.Background())
	})
}

// stopRetryLocked cancels a pending reconnect. Callers hold c.mu.
func (c *Conn) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}
