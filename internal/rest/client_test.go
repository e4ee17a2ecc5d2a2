package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cursyhq/cursy/internal/store"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestConversationsMapsDTO(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations" {
			t.Errorf("path = %q, want /conversations", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("Authorization = %q, want Bearer tok123", got)
		}
		_, _ = w.Write([]byte(`[
			{"id":"c1","other_user":{"id":"u2","name":"Alice","profile_image":"img.png"},"last_message":"hey","updated_at":"2025-03-01T10:00:00.123456"},
			{"id":"c2","participants":["me","u9"]}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok123"))
	convs, err := c.Conversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}

	first := convs[0]
	if first.OtherUserID != "u2" || first.OtherUserName != "Alice" || first.OtherUserImage != "img.png" {
		t.Errorf("conversation = %+v", first)
	}
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	if first.UpdatedAt != want {
		t.Errorf("UpdatedAt = %d, want %d (fractional seconds truncated)", first.UpdatedAt, want)
	}

	// Fallback: no other_user descriptor, second participant is the
	// other party and the display name defaults.
	second := convs[1]
	if second.OtherUserID != "u9" {
		t.Errorf("OtherUserID = %q, want u9 (participants fallback)", second.OtherUserID)
	}
	if second.OtherUserName != "Chat" {
		t.Errorf("OtherUserName = %q, want Chat", second.OtherUserName)
	}
}

func TestMessagesMapsDTO(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations/c1/messages" {
			t.Errorf("path = %q, want /conversations/c1/messages", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"id":"m1","conversation_id":"c1","sender_id":"u2","content":"hola","created_at":"2025-03-01T10:00:05"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""))
	msgs, err := c.Messages(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ID != "m1" || m.SenderID != "u2" || m.Content != "hola" {
		t.Errorf("message = %+v", m)
	}
	if m.Status != store.StatusSent || m.Type != "chat" {
		t.Errorf("status/type = %q/%q, want SENT/chat", m.Status, m.Type)
	}
}

func TestCreateConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/conversations" {
			t.Errorf("%s %s, want POST /conversations", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"c5","other_user":{"id":"u3","name":"Bob","profile_image":""}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("t"))
	conv, err := c.CreateConversation(context.Background(), "u3")
	if err != nil {
		t.Fatal(err)
	}
	if conv.ID != "c5" || conv.OtherUserID != "u3" {
		t.Errorf("conversation = %+v", conv)
	}
}

func TestSearchUsersQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("search"); got != "ali" {
			t.Errorf("search = %q, want ali", got)
		}
		_, _ = w.Write([]byte(`{"users":[{"id":"u2","name":"Alice","email":"a@x.io","profile_image":"p.png","bio":"hi"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("t"))
	users, err := c.SearchUsers(context.Background(), "ali")
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 {
		t.Fatalf("got %d users, want 1", len(users))
	}
	u := users[0]
	if u.ID != "u2" || u.Name != "Alice" || u.Email != "a@x.io" || u.Image != "p.png" || u.Bio != "hi" {
		t.Errorf("user = %+v", u)
	}
}

func TestOnlineUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/online" {
			t.Errorf("path = %q, want /users/online", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"online_users":["u1","u2"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("t"))
	ids, err := c.OnlineUsers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "u1" {
		t.Errorf("ids = %v, want [u1 u2]", ids)
	}
}

func TestDeleteAccount(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodDelete || r.URL.Path != "/users/me" {
			t.Errorf("%s %s, want DELETE /users/me", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("t"))
	if err := c.DeleteAccount(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("server not called")
	}
}

func TestAPIErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("stale"))
	_, err := c.Conversations(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T (%v), want *APIError", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.Status)
	}
}

func TestNetworkErrorOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from now on

	c := NewClient(srv.URL, staticToken("t"))
	_, err := c.Conversations(context.Background())

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %T (%v), want *NetworkError", err, err)
	}
	if netErr.Unwrap() == nil {
		t.Error("NetworkError must wrap the underlying cause")
	}
}

func TestParseAPITimeFallback(t *testing.T) {
	before := time.Now().UnixMilli()
	got := parseAPITime("garbage")
	after := time.Now().UnixMilli()
	if got < before || got > after {
		t.Errorf("fallback time %d outside [%d, %d]", got, before, after)
	}
}
