package channel

import (
	"path/filepath"
	"testing"

	"github.com/cursyhq/cursy/internal/bus"
	"github.com/cursyhq/cursy/internal/recipients"
	"github.com/cursyhq/cursy/internal/store"
	"go.uber.org/zap"
)

type fakeIdentity struct {
	id string
}

func (f fakeIdentity) CurrentUserID() string { return f.id }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testIngestor(t *testing.T, db *store.DB, self string) (*Ingestor, *recipients.Cache, *Presence) {
	t.Helper()
	b := bus.New()
	rc := recipients.NewCache()
	presence := NewPresence(b)
	logger, _ := zap.NewDevelopment()
	return NewIngestor(db, fakeIdentity{id: self}, rc, presence, b, logger), rc, presence
}

func TestHandleFrameStoresForeignMessage(t *testing.T) {
	db := testDB(t)
	in, _, _ := testIngestor(t, db, "me")

	in.HandleFrame([]byte(`{"type":"chat","conversation_id":"c1","receiver_id":"me","content":"hola","sender_id":"u2"}`))

	msgs, err := db.ListMessages("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.SenderID != "u2" || m.Content != "hola" || m.Status != store.StatusSent {
		t.Errorf("message = %+v, want sender u2, content hola, status SENT", m)
	}
	if len(m.ID) != 24 {
		t.Errorf("id length = %d, want 24", len(m.ID))
	}
}

func TestHandleFrameDedup(t *testing.T) {
	db := testDB(t)
	in, _, _ := testIngestor(t, db, "me")

	frame := []byte(`{"type":"chat","conversation_id":"c1","receiver_id":"me","content":"hola","sender_id":"u2"}`)
	in.HandleFrame(frame)
	in.HandleFrame(frame)

	msgs, _ := db.ListMessages("c1")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (identical inbound frames must dedup)", len(msgs))
	}
}

// TestHandleFrameDiscardsSelfEcho covers the echo of our own send: no
// sender id and a receiver that is not us means the server is echoing a
// message we sent, which the optimistic insert already stored.
func TestHandleFrameDiscardsSelfEcho(t *testing.T) {
	db := testDB(t)
	in, _, _ := testIngestor(t, db, "me")

	// Optimistic insert from a prior send.
	if err := db.UpsertMessage(&store.Message{ID: "local_1", ConversationID: "c1", SenderID: "me", Content: "yo", CreatedAt: 1000, Status: store.StatusSent}); err != nil {
		t.Fatal(err)
	}

	in.HandleFrame([]byte(`{"type":"chat","conversation_id":"c1","receiver_id":"u2","content":"yo"}`))

	msgs, _ := db.ListMessages("c1")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (self echo must be discarded)", len(msgs))
	}
	if msgs[0].ID != "local_1" {
		t.Errorf("surviving id = %q, want local_1", msgs[0].ID)
	}
}

// TestHandleFrameResolvesSenderFromCache: the frame has no sender and is
// addressed to us, so the sender falls through to the cached other
// participant of the conversation. Resolution must try the explicit
// sender first, then the receiver check, then the cache, in that order.
func TestHandleFrameResolvesSenderFromCache(t *testing.T) {
	db := testDB(t)
	in, rc, _ := testIngestor(t, db, "me")
	rc.Put("c1", "u2")

	in.HandleFrame([]byte(`{"type":"chat","conversation_id":"c1","receiver_id":"me","content":"hi"}`))

	msgs, _ := db.ListMessages("c1")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].SenderID != "u2" {
		t.Errorf("sender = %q, want u2 (cache lookup)", msgs[0].SenderID)
	}
}

func TestHandleFrameDiscardsUnresolvable(t *testing.T) {
	db := testDB(t)
	in, _, _ := testIngestor(t, db, "me")

	// Receiver is us, no sender, conversation not cached.
	in.HandleFrame([]byte(`{"type":"chat","conversation_id":"c1","receiver_id":"me","content":"hi"}`))
	// No conversation id at all.
	in.HandleFrame([]byte(`{"type":"chat","receiver_id":"me","content":"hi","sender_id":"u2"}`))

	msgs, _ := db.ListMessages("c1")
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0 (unresolvable frames discarded)", len(msgs))
	}
}

func TestHandleFrameMalformed(t *testing.T) {
	db := testDB(t)
	in, _, _ := testIngestor(t, db, "me")

	// Must not panic, must not write.
	in.HandleFrame([]byte(`{not json`))

	msgs, _ := db.ListMessages("c1")
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}

// TestHandleFrameUserStatus verifies presence frames touch only the
// presence map, never the message store.
func TestHandleFrameUserStatus(t *testing.T) {
	db := testDB(t)
	in, _, presence := testIngestor(t, db, "me")

	in.HandleFrame([]byte(`{"type":"user_status","content":"online","sender_id":"u2"}`))
	in.HandleFrame([]byte(`{"type":"user_status","content":"offline","sender_id":"u3"}`))

	snap := presence.Snapshot()
	if online, ok := snap["u2"]; !ok || !online {
		t.Errorf("u2 presence = %v/%v, want online", snap["u2"], ok)
	}
	if online, ok := snap["u3"]; !ok || online {
		t.Errorf("u3 presence = %v/%v, want offline", snap["u3"], ok)
	}

	msgs, _ := db.ListMessages("")
	if len(msgs) != 0 {
		t.Errorf("user_status frame wrote %d messages, want 0", len(msgs))
	}
}

func TestHandleFrameTouchesConversation(t *testing.T) {
	db := testDB(t)
	in, _, _ := testIngestor(t, db, "me")

	in.HandleFrame([]byte(`{"type":"chat","conversation_id":"c1","receiver_id":"me","content":"preview me","sender_id":"u2"}`))

	conv, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if conv == nil || conv.LastMessage != "preview me" {
		t.Errorf("conversation preview = %+v, want 'preview me'", conv)
	}
}
