// Package talkwire is a Go client for the Talkwire chat server.
//
// The heart of the package is the session synchronization core: a Session
// that owns the persistent realtime connection (Conn), reconciles frames
// arriving over it with history fetched via the HTTP transport (Client),
// deduplicates server echoes of the user's own group sends, and tracks the
// single active conversation.
//
// Example:
//
//	client := talkwire.NewClient("http://localhost:8080", token)
//	conn := talkwire.NewConn(talkwire.ConnConfig{BaseURL: client.BaseURL(), Token: token})
//	session := talkwire.NewSession(client, conn, talkwire.SessionConfig{User: me})
//
//	go session.Run(ctx)
//	session.Switch(ctx, talkwire.ConversationKey{Kind: talkwire.KindGroup, ID: "42"})
//	session.SendGroup(ctx, "42", "hello")
package talkwire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every transport call.
const DefaultTimeout = 30 * time.Second

// ============================================================================
// Client
// ============================================================================

// Client is the request/response transport: it issues authenticated HTTP
// calls for history loads, durable writes, and account management. It does
// not touch the realtime connection.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// NewClient creates a transport client for the server at baseURL.
// token may be empty for unauthenticated calls (login, register).
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken sets or updates the bearer credential, e.g. after login.
func (c *Client) SetToken(token string) { c.token = token }

// WSURL returns the realtime connection URL carrying the credential as a
// query parameter. Scheme follows the base URL's own scheme.
func (c *Client) WSURL() string {
	base := strings.Replace(c.baseURL, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	if c.token != "" {
		return base + "/ws?token=" + url.QueryEscape(c.token)
	}
	return base + "/ws"
}

// ----------------------------------------------------------------------------
// Internal request helpers
// ----------------------------------------------------------------------------

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// doJSON issues a request and decodes a successful response into out.
// Non-2xx responses become *APIError carrying the server's message.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	data, status, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{Status: status, Message: serverMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// serverMessage pulls the human-readable error out of a failure body.
// The server uses both {"error": ...} and {"message": ...}.
func serverMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return ""
}

// ============================================================================
// Auth
// ============================================================================

// Login exchanges credentials for a bearer token and the user's profile.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginData, error) {
	var result LoginData
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"password": password,
	}, nil)
}

// ============================================================================
// Contacts
// ============================================================================

// Friends lists the user's accepted contacts.
func (c *Client) Friends(ctx context.Context) ([]Friend, error) {
	var result struct {
		Friends []Friend `json:"friends"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/friends", nil, &result); err != nil {
		return nil, err
	}
	return result.Friends, nil
}

// AddFriend sends a friend request to the given user.
func (c *Client) AddFriend(ctx context.Context, friendID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/friends/add", map[string]string{
		"friendId": friendID,
	}, nil)
}

// Groups lists the groups the user belongs to.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var result struct {
		Groups []Group `json:"groups"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/groups", nil, &result); err != nil {
		return nil, err
	}
	return result.Groups, nil
}

// CreateGroup creates a group owned by the user.
func (c *Client) CreateGroup(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/groups/create", map[string]string{
		"name": name,
	}, nil)
}

// ============================================================================
// Messages
// ============================================================================

// historyEntry is the server's persisted message shape. Ids arrive as
// numbers; timestamps as RFC 3339 strings.
type historyEntry struct {
	ID        Identifier `json:"id"`
	SenderID  Identifier `json:"senderId"`
	Content   string     `json:"content"`
	Timestamp string     `json:"timestamp"`
}

func (c *Client) history(ctx context.Context, path string) ([]Message, error) {
	var result struct {
		Messages []historyEntry `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(result.Messages))
	for _, e := range result.Messages {
		msgs = append(msgs, Message{
			ID:        e.ID.String(),
			SenderID:  e.SenderID,
			Content:   e.Content,
			Timestamp: e.Timestamp,
		})
	}
	return msgs, nil
}

// PrivateHistory fetches the message history of a 1:1 conversation.
func (c *Client) PrivateHistory(ctx context.Context, userID string) ([]Message, error) {
	if userID == "" {
		return nil, ErrInvalidTarget
	}
	return c.history(ctx, "/api/messages/private/"+url.PathEscape(userID))
}

// GroupHistory fetches the message history of a group conversation.
func (c *Client) GroupHistory(ctx context.Context, groupID string) ([]Message, error) {
	if groupID == "" {
		return nil, ErrInvalidTarget
	}
	return c.history(ctx, "/api/messages/group/"+url.PathEscape(groupID))
}

// PersistPrivate durably stores a private message server-side, independent
// of the realtime push.
func (c *Client) PersistPrivate(ctx context.Context, receiverID, content string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/messages/private", map[string]string{
		"receiverId": receiverID,
		"content":    content,
	}, nil)
}

// PersistGroup durably stores a group message server-side.
func (c *Client) PersistGroup(ctx context.Context, groupID, content string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/messages/group", map[string]string{
		"groupId": groupID,
		"content": content,
	}, nil)
}
