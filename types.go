package talkwire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrNotConnected is returned when a send is attempted while the
	// realtime connection is not established. No retry is performed.
	ErrNotConnected = errors.New("talkwire: not connected")

	// ErrInvalidTarget is returned when a conversation switch or history
	// load names an empty conversation id.
	ErrInvalidTarget = errors.New("talkwire: invalid conversation target")
)

// APIError carries a non-success server response. Network-level failures are
// wrapped separately.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.Status)
}

// ============================================================================
// Identifiers
// ============================================================================

// Identifier is an opaque conversation or user id. The server's schema uses
// numeric ids but serializes them inconsistently across endpoints, so the
// decoder accepts both JSON strings and numbers; the encoder always emits a
// string.
type Identifier string

func (id Identifier) String() string { return string(id) }

func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = Identifier(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = Identifier(n.String())
	return nil
}

// ============================================================================
// Conversations and messages
// ============================================================================

// ConversationKind distinguishes 1:1 threads from group threads.
type ConversationKind string

const (
	KindPrivate ConversationKind = "private"
	KindGroup   ConversationKind = "group"
)

// ConversationKey addresses a single conversation. Two keys are equal iff
// both kind and id match, so the type is directly usable as a map key.
type ConversationKey struct {
	Kind ConversationKind
	ID   string
}

func (k ConversationKey) String() string {
	return string(k.Kind) + "/" + k.ID
}

// Message is one entry in a conversation log. ID is assigned client-side at
// arrival time and is a display key only, never a deduplication key.
// Timestamp is server-supplied and carried through verbatim.
type Message struct {
	ID        string     `json:"id"`
	SenderID  Identifier `json:"senderId"`
	Content   string     `json:"content"`
	Timestamp string     `json:"timestamp"`
}

// UserProfile is the locally persisted identity of the logged-in user.
type UserProfile struct {
	ID       Identifier `json:"id"`
	Username string     `json:"username"`
}

// ============================================================================
// Wire frames
// ============================================================================

// Envelope is the decoded form of an inbound realtime frame: a kind tag plus
// an undecoded payload, dispatched by the session's routing loop.
type Envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// Frame is an outbound realtime frame.
type Frame struct {
	Type    string `json:"type"`
	Message any    `json:"message"`
}

// PrivateMessage is the payload of a private frame.
type PrivateMessage struct {
	From      Identifier `json:"from"`
	To        Identifier `json:"to"`
	Content   string     `json:"content"`
	Timestamp string     `json:"timestamp"`
}

// GroupMessage is the payload of a group frame.
type GroupMessage struct {
	GroupID   Identifier `json:"groupId"`
	SenderID  Identifier `json:"senderId"`
	Content   string     `json:"content"`
	Timestamp string     `json:"timestamp"`
}

// ============================================================================
// Transport payloads
// ============================================================================

// LoginData is the response to a successful login.
type LoginData struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// Friend is one entry in the user's contact list.
type Friend struct {
	ID       Identifier `json:"id"`
	Username string     `json:"username"`
}

// Group is one entry in the user's group list.
type Group struct {
	ID   Identifier `json:"id"`
	Name string     `json:"name"`
}
