package store

import (
	"context"

	"github.com/cursyhq/cursy/internal/bus"
	"go.uber.org/zap"
)

// Watcher turns bus write notifications into live, ordered message
// snapshots. Every component that writes messages publishes a
// "message.*" event with the conversation id in its payload; the
// watcher re-queries the store on each one, so any write becomes
// visible to any concurrent or later observation.
type Watcher struct {
	db     *DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewWatcher creates a watcher over the given store.
func NewWatcher(db *DB, b *bus.Bus, logger *zap.Logger) *Watcher {
	return &Watcher{db: db, bus: b, logger: logger}
}

// Watch emits the current messages of a conversation ordered by creation
// time ascending, then a fresh snapshot after each write touching that
// conversation. The channel closes when ctx is done.
func (w *Watcher) Watch(ctx context.Context, conversationID string) (<-chan []Message, error) {
	initial, err := w.db.ListMessages(conversationID)
	if err != nil {
		return nil, err
	}

	out := make(chan []Message, 1)
	out <- initial

	events, unsub := w.bus.Subscribe("message.", 64)
	go func() {
		defer close(out)
		defer unsub()
		for {
			select {
			case evt := <-events:
				if conversationOf(evt) != conversationID {
					continue
				}
				msgs, err := w.db.ListMessages(conversationID)
				if err != nil {
					if w.logger != nil {
						w.logger.Error("watch requery failed", zap.Error(err), zap.String("conversation_id", conversationID))
					}
					continue
				}
				select {
				case out <- msgs:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func conversationOf(evt bus.Event) string {
	payload, ok := evt.Payload.(map[string]string)
	if !ok {
		return ""
	}
	return payload["conversation_id"]
}
