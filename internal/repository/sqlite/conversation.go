package sqlite

import (
	"context"
	"fmt"

	"github.com/stormline/dispatch/internal/models"
)

func (r *SQLiteRepo) CreateConversation(ctx context.Context, c *models.Conversation) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("conversation is nil")
	}
	if c.Metadata == "" {
		c.Metadata = "{}"
	}
	if c.Created == 0 {
		c.Created = now()
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO conversations
		(session_id, role, message, response, provenance, confidence, metadata, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.SessionID, c.Role, c.Message, c.Response, c.Provenance, c.Confidence, c.Metadata, c.Created)
	if err != nil {
		return 0, fmt.Errorf("create conversation: %w", err)
	}
	return res.LastInsertId()
}

// RecentBySession returns up to limit prior turns for a session, oldest
// first, so callers can hand them to the classifier as context.
func (r *SQLiteRepo) RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.conn.QueryRows(ctx, `SELECT id, session_id, role, message, response, provenance, confidence, metadata, created
		FROM conversations WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Role, &c.Message, &c.Response, &c.Provenance, &c.Confidence, &c.Metadata, &c.Created); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
