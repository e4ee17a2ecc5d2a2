package store

import "database/sql"

// UpsertConversation inserts or updates a conversation record.
func (db *DB) UpsertConversation(c *Conversation) error {
	_, err := db.Exec(`
		INSERT INTO conversations (id, other_user_id, other_user_name, other_user_image, last_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			other_user_id = excluded.other_user_id,
			other_user_name = excluded.other_user_name,
			other_user_image = excluded.other_user_image,
			last_message = excluded.last_message,
			updated_at = excluded.updated_at`,
		c.ID, c.OtherUserID, c.OtherUserName, c.OtherUserImage, c.LastMessage, c.UpdatedAt)
	return err
}

// TouchConversation bumps a conversation's preview and timestamp without
// disturbing the other-party descriptor, creating the row if needed. The
// ingest path calls this for conversations not yet fetched over REST.
func (db *DB) TouchConversation(id, lastMessage string, updatedAt int64) error {
	_, err := db.Exec(`
		INSERT INTO conversations (id, last_message, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_message = excluded.last_message,
			updated_at = MAX(conversations.updated_at, excluded.updated_at)`,
		id, lastMessage, updatedAt)
	return err
}

// ListConversations returns conversations sorted by last update descending.
func (db *DB) ListConversations() ([]Conversation, error) {
	rows, err := db.Query(`
		SELECT id, other_user_id, other_user_name, other_user_image, last_message, updated_at
		FROM conversations
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.OtherUserID, &c.OtherUserName, &c.OtherUserImage, &c.LastMessage, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation by id, or nil if absent.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, other_user_id, other_user_name, other_user_image, last_message, updated_at
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.OtherUserID, &c.OtherUserName, &c.OtherUserImage, &c.LastMessage, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
