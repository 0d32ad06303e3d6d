package talkwire

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// DefaultDedupWindow is how close two timestamps must be for an inbound group
// echo to be considered a duplicate of a logged message.
const DefaultDedupWindow = time.Second

// transport is the request/response collaborator the session drives for
// history loads and durable writes. *Client satisfies it.
type transport interface {
	PrivateHistory(ctx context.Context, userID string) ([]Message, error)
	GroupHistory(ctx context.Context, groupID string) ([]Message, error)
	PersistPrivate(ctx context.Context, receiverID, content string) error
	PersistGroup(ctx context.Context, groupID, content string) error
}

// link is the realtime connection the session drives for pushes and consumes
// frames from. *Conn satisfies it.
type link interface {
	Connect(ctx context.Context) error
	Close() error
	Send(ctx context.Context, frame Frame) error
	State() ConnState
	Events() <-chan Event
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// User is the logged-in identity; inbound frames from this id are
	// candidates for echo deduplication.
	User UserProfile
	// DedupWindow overrides DefaultDedupWindow.
	DedupWindow time.Duration
	// OnMessage, when set, is invoked after every accepted append so a view
	// layer can redraw. It must not mutate the store.
	OnMessage func(ConversationKey, Message)
	Logger    *slog.Logger
}

// Session is the synchronization core: it owns the realtime connection, the
// message store, and the single active conversation, and reconciles the two
// message paths (live frames and fetched history). Create one per login and
// tear it down with Logout.
type Session struct {
	user        UserProfile
	api         transport
	conn        link
	store       *Store
	dedupWindow time.Duration
	onMessage   func(ConversationKey, Message)
	logger      *slog.Logger

	mu     sync.Mutex
	active *ConversationKey
}

// NewSession wires a session around the transport and realtime connection.
func NewSession(api transport, conn link, cfg SessionConfig) *Session {
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		user:        cfg.User,
		api:         api,
		conn:        conn,
		store:       NewStore(),
		dedupWindow: cfg.DedupWindow,
		onMessage:   cfg.OnMessage,
		logger:      cfg.Logger,
	}
}

// Store exposes the session's message logs for read-only composition by the
// view layer.
func (s *Session) Store() *Store { return s.store }

// Messages returns the log of the given conversation.
func (s *Session) Messages(key ConversationKey) []Message {
	return s.store.Read(key)
}

// Active returns the currently focused conversation, if any.
func (s *Session) Active() (ConversationKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ConversationKey{}, false
	}
	return *s.active, true
}

// ActiveMessages returns the log of the active conversation. The view layer
// derives its display from this composition rather than a stored snapshot, so
// it stays live as appends arrive.
func (s *Session) ActiveMessages() []Message {
	key, ok := s.Active()
	if !ok {
		return nil
	}
	return s.store.Read(key)
}

// ============================================================================
// Active conversation control
// ============================================================================

// Switch focuses key: it makes sure the realtime connection is up
// (best-effort, without blocking on the dial), marks key active, and loads
// its history into the store. A history response that lands after the user
// has already moved on to another conversation is discarded. On a transport
// failure the log and the active key are left as they are and the error is
// returned so the view can offer a retry.
func (s *Session) Switch(ctx context.Context, key ConversationKey) error {
	if key.ID == "" {
		return ErrInvalidTarget
	}
	if key.Kind != KindPrivate && key.Kind != KindGroup {
		return ErrInvalidTarget
	}

	if s.conn.State() != StateConnected {
		go func() {
			_ = s.conn.Connect(context.Background())
		}()
	}

	s.mu.Lock()
	k := key
	s.active = &k
	s.mu.Unlock()

	var msgs []Message
	var err error
	switch key.Kind {
	case KindPrivate:
		msgs, err = s.api.PrivateHistory(ctx, key.ID)
	case KindGroup:
		msgs, err = s.api.GroupHistory(ctx, key.ID)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	stillActive := s.active != nil && *s.active == key
	s.mu.Unlock()
	if !stillActive {
		s.logger.Debug("discarding stale history load", "conversation", key)
		return nil
	}
	s.store.Replace(key, msgs)
	return nil
}

// Logout tears the session down: no active conversation, connection closed,
// then all logs dropped. The connection is closed before the store is wiped
// so no further inbound frame can land in a store that is about to go away.
func (s *Session) Logout() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
	_ = s.conn.Close()
	s.store.Clear()
}

// ============================================================================
// Outbound sends
// ============================================================================

// SendPrivate performs the dual write for a 1:1 message: a frame pushed over
// the live connection for real-time delivery and a durable write via the
// transport. Both are attempted even if the push fails; the reported outcome
// is the durable write's, since the push is best-effort. The message is not
// appended locally — the sender sees it when the server echoes it back.
func (s *Session) SendPrivate(ctx context.Context, receiverID, content string) error {
	if s.conn.State() != StateConnected {
		return ErrNotConnected
	}
	s.push(ctx, Frame{
		Type: string(KindPrivate),
		Message: PrivateMessage{
			From:      s.user.ID,
			To:        Identifier(receiverID),
			Content:   content,
			Timestamp: wireTimestamp(),
		},
	})
	return s.api.PersistPrivate(ctx, receiverID, content)
}

// SendGroup performs the dual write for a group message. See SendPrivate.
func (s *Session) SendGroup(ctx context.Context, groupID, content string) error {
	if s.conn.State() != StateConnected {
		return ErrNotConnected
	}
	s.push(ctx, Frame{
		Type: string(KindGroup),
		Message: GroupMessage{
			GroupID:   Identifier(groupID),
			SenderID:  s.user.ID,
			Content:   content,
			Timestamp: wireTimestamp(),
		},
	})
	return s.api.PersistGroup(ctx, groupID, content)
}

func (s *Session) push(ctx context.Context, frame Frame) {
	if err := s.conn.Send(ctx, frame); err != nil {
		s.logger.Warn("realtime push failed", "type", frame.Type, "err", err)
	}
}

func wireTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ============================================================================
// Inbound routing
// ============================================================================

// Run consumes connection events in arrival order until ctx is done. It is
// the single mutation path for inbound messages; run it in its own goroutine
// for the lifetime of the session.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.conn.Events():
			switch ev.Kind {
			case EventFrame:
				s.handleFrame(ev.Envelope)
			case EventClosed:
				// Reconnection is the connection's own business; the drop
				// is not surfaced to the view.
				s.logger.Info("session saw connection drop", "err", ev.Err)
			}
		}
	}
}

// HandleFrame routes a single inbound envelope. Exposed for callers that
// drive delivery themselves instead of using Run.
func (s *Session) HandleFrame(env *Envelope) {
	s.handleFrame(env)
}

func (s *Session) handleFrame(env *Envelope) {
	if env == nil {
		return
	}
	switch env.Type {
	case string(KindPrivate):
		var p PrivateMessage
		if err := json.Unmarshal(env.Message, &p); err != nil {
			s.logger.Warn("discarding undecodable private payload", "err", err)
			return
		}
		s.acceptPrivate(p)
	case string(KindGroup):
		var g GroupMessage
		if err := json.Unmarshal(env.Message, &g); err != nil {
			s.logger.Warn("discarding undecodable group payload", "err", err)
			return
		}
		s.acceptGroup(g)
	default:
		s.logger.Warn("discarding frame of unknown type", "type", env.Type)
	}
}

// acceptPrivate appends a 1:1 message under the conversation peer: the other
// party, or the recipient when the frame is the user's own echo. The echo is
// always kept; since sends never append locally, it is the only copy the
// author gets.
func (s *Session) acceptPrivate(p PrivateMessage) {
	peer := p.From
	if p.From == s.user.ID {
		peer = p.To
	}
	if peer == "" {
		s.logger.Warn("discarding private frame without a peer")
		return
	}
	key := ConversationKey{Kind: KindPrivate, ID: peer.String()}
	s.append(key, Message{
		ID:        clientMessageID(),
		SenderID:  p.From,
		Content:   p.Content,
		Timestamp: p.Timestamp,
	})
}

// acceptGroup appends a group message unless it is judged a server echo of a
// message the user already has locally.
func (s *Session) acceptGroup(g GroupMessage) {
	if g.GroupID == "" {
		s.logger.Warn("discarding group frame without a group id")
		return
	}
	key := ConversationKey{Kind: KindGroup, ID: g.GroupID.String()}
	if g.SenderID == s.user.ID && s.isDuplicate(key, g) {
		s.logger.Debug("suppressing echoed group message", "group", g.GroupID)
		return
	}
	s.append(key, Message{
		ID:        clientMessageID(),
		SenderID:  g.SenderID,
		Content:   g.Content,
		Timestamp: g.Timestamp,
	})
}

func (s *Session) append(key ConversationKey, msg Message) {
	s.store.Append(key, msg)
	if s.onMessage != nil {
		s.onMessage(key, msg)
	}
}

// ============================================================================
// Echo deduplication
// ============================================================================

// isDuplicate reports whether an inbound group message from the local user
// matches a logged entry by sender, exact content, and timestamp proximity.
// This is a heuristic, not a guarantee: without a stable server-assigned id
// at send time, two genuinely distinct identical messages inside the window
// collapse to one.
func (s *Session) isDuplicate(key ConversationKey, g GroupMessage) bool {
	for _, m := range s.store.Read(key) {
		if m.SenderID == g.SenderID && m.Content == g.Content &&
			timestampsClose(m.Timestamp, g.Timestamp, s.dedupWindow) {
			return true
		}
	}
	return false
}

// timestampsClose parses two wire timestamps and reports whether they fall
// within window of each other. Unparseable timestamps never match.
func timestampsClose(a, b string, window time.Duration) bool {
	ta, err := parseWireTime(a)
	if err != nil {
		return false
	}
	tb, err := parseWireTime(b)
	if err != nil {
		return false
	}
	d := ta.Sub(tb)
	if d < 0 {
		d = -d
	}
	return d < window
}

func parseWireTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// clientMessageID produces the local display key for an arriving message: a
// monotonic-enough clock reading. It is not unique across processes and must
// never be used for deduplication.
func clientMessageID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
