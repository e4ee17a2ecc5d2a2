package store

import "fmt"

// UpsertMessage inserts or updates a message (idempotent on id, last
// write wins).
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at, type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			sender_id = excluded.sender_id,
			content = excluded.content,
			created_at = excluded.created_at,
			type = excluded.type,
			status = excluded.status`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt, m.Type, m.Status)
	return err
}

// UpsertMessages inserts or updates a batch of messages in one transaction.
func (db *DB) UpsertMessages(msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (id, conversation_id, sender_id, content, created_at, type, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				conversation_id = excluded.conversation_id,
				sender_id = excluded.sender_id,
				content = excluded.content,
				created_at = excluded.created_at,
				type = excluded.type,
				status = excluded.status`,
			m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt, m.Type, m.Status); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// UpdateMessageStatus sets the status of a single message by id.
func (db *DB) UpdateMessageStatus(id, status string) error {
	_, err := db.Exec(`UPDATE messages SET status = ? WHERE id = ?`, status, id)
	return err
}

// DeleteMessage removes a message by id.
func (db *DB) DeleteMessage(id string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	return err
}

// ListMessages returns all messages for a conversation ordered by
// creation time ascending.
func (db *DB) ListMessages(conversationID string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, sender_id, content, created_at, type, status
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt, &m.Type, &m.Status); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountDuplicates returns how many stored messages share the given
// conversation, sender and content. The realtime ingest path uses this
// weak fingerprint to drop echoed frames, since the server does not
// echo back the client-generated id.
func (db *DB) CountDuplicates(conversationID, senderID, content string) (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = ? AND sender_id = ? AND content = ?`,
		conversationID, senderID, content).Scan(&n)
	return n, err
}

// ReplaceServerMessages clears the cached server history for a
// conversation and inserts the fresh set in one transaction. Rows still
// PENDING or FAILED are locally-originated send attempts that the server
// does not know about yet; they are left untouched.
func (db *DB) ReplaceServerMessages(conversationID string, msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		DELETE FROM messages
		WHERE conversation_id = ? AND status NOT IN (?, ?)`,
		conversationID, StatusPending, StatusFailed); err != nil {
		return fmt.Errorf("clear server messages: %w", err)
	}

	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (id, conversation_id, sender_id, content, created_at, type, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				conversation_id = excluded.conversation_id,
				sender_id = excluded.sender_id,
				content = excluded.content,
				created_at = excluded.created_at,
				type = excluded.type,
				status = excluded.status`,
			m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt, m.Type, m.Status); err != nil {
			return fmt.Errorf("insert server message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}
