package talkwire

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientPrivateHistoryDecodesNumericIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/messages/private/9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer credential: %q", got)
		}
		// The server persists ids as numbers and timestamps as RFC 3339.
		w.Write([]byte(`{"messages":[
			{"id":101,"senderId":9,"content":"hey","timestamp":"2024-05-01T12:00:00Z"},
			{"id":102,"senderId":100,"content":"yo","timestamp":"2024-05-01T12:00:05Z"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	msgs, err := c.PrivateHistory(context.Background(), "9")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "101" || msgs[0].SenderID != "9" || msgs[0].Content != "hey" {
		t.Fatalf("bad decode: %+v", msgs[0])
	}
	if msgs[0].Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("timestamp not carried verbatim: %q", msgs[0].Timestamp)
	}
}

func TestClientHistoryRejectsEmptyID(t *testing.T) {
	c := NewClient("http://example.invalid", "tok")
	if _, err := c.PrivateHistory(context.Background(), ""); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
	if _, err := c.GroupHistory(context.Background(), ""); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestClientSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"not a member of this group"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.GroupHistory(context.Background(), "42")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "not a member of this group" {
		t.Fatalf("error details lost: %+v", apiErr)
	}
}

func TestClientPersistBodies(t *testing.T) {
	var bodies []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if err := c.PersistPrivate(context.Background(), "9", "hi"); err != nil {
		t.Fatal(err)
	}
	if err := c.PersistGroup(context.Background(), "42", "hello"); err != nil {
		t.Fatal(err)
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 durable writes, got %d", len(bodies))
	}
	// Identifiers go over the wire as strings.
	if bodies[0]["receiverId"] != "9" || bodies[0]["content"] != "hi" {
		t.Fatalf("bad private body: %v", bodies[0])
	}
	if bodies[1]["groupId"] != "42" || bodies[1]["content"] != "hello" {
		t.Fatalf("bad group body: %v", bodies[1])
	}
}

func TestClientLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("login must not carry a credential: %q", got)
		}
		w.Write([]byte(`{"token":"jwt-1","user":{"id":100,"username":"alice"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	data, err := c.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if data.Token != "jwt-1" || data.User.ID != "100" || data.User.Username != "alice" {
		t.Fatalf("bad login decode: %+v", data)
	}
}

func TestClientWSURL(t *testing.T) {
	cases := []struct {
		base, token, want string
	}{
		{"http://chat.local", "tok", "ws://chat.local/ws?token=tok"},
		{"https://chat.local/", "tok", "wss://chat.local/ws?token=tok"},
		{"https://chat.local", "", "wss://chat.local/ws"},
	}
	for _, tc := range cases {
		c := NewClient(tc.base, tc.token)
		if got := c.WSURL(); got != tc.want {
			t.Errorf("WSURL(%q, %q) = %q, want %q", tc.base, tc.token, got, tc.want)
		}
	}
}

func TestIdentifierRoundTrip(t *testing.T) {
	var id Identifier
	if err := json.Unmarshal([]byte(`42`), &id); err != nil {
		t.Fatal(err)
	}
	if id != "42" {
		t.Fatalf("number decode: %q", id)
	}
	if err := json.Unmarshal([]byte(`"abc"`), &id); err != nil {
		t.Fatal(err)
	}
	if id != "abc" {
		t.Fatalf("string decode: %q", id)
	}
	if err := json.Unmarshal([]byte(`null`), &id); err != nil {
		t.Fatal(err)
	}
	if id != "" {
		t.Fatalf("null decode: %q", id)
	}
	if err := json.Unmarshal([]byte(`[1]`), &id); err == nil {
		t.Fatal("arrays must not decode as identifiers")
	}

	out, err := json.Marshal(Identifier("42"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"42"` {
		t.Fatalf("identifiers must serialize as strings: %s", out)
	}
}
