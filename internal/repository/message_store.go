package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/steveyegge/convanalytics/internal/dberr"
	"github.com/steveyegge/convanalytics/internal/types"
)

// MySQLStore is the default MessageStore adapter (spec §6), reading the
// externally-owned conversations/messages tables on the same connection
// pool the analytics repositories write to.
type MySQLStore struct {
	*Base
}

func NewMySQLStore(db *sql.DB, log *zap.Logger) *MySQLStore {
	return &MySQLStore{Base: NewBase(db, "message_store", log)}
}

// GetConversation reads a single conversation by id.
func (s *MySQLStore) GetConversation(ctx context.Context, id string) (types.Conversation, error) {
	stmt, err := s.Prepare(ctx, "get_conversation", `
		SELECT id, title, attributes, created_at, updated_at FROM conversations WHERE id = ?
	`)
	if err != nil {
		return types.Conversation{}, err
	}

	var c types.Conversation
	var attributes sql.NullString
	row := stmt.QueryRowContext(ctx, id)
	if err := row.Scan(&c.ID, &c.Title, &attributes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return types.Conversation{}, dberr.Classify("get conversation", err)
	}
	bag, err := types.BagFromText(attributes.String)
	if err != nil {
		return types.Conversation{}, err
	}
	c.Attributes = bag
	return c, nil
}

// GetMessages reads a conversation's full message sequence, oldest first.
func (s *MySQLStore) GetMessages(ctx context.Context, conversationID string) ([]types.Message, error) {
	stmt, err := s.Prepare(ctx, "get_messages", `
		SELECT id, conversation_id, role, content, created_at FROM messages
		WHERE conversation_id = ? ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, conversationID)
	if err != nil {
		return nil, dberr.Classify("get messages", err)
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		var m types.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, dberr.Classify("get messages scan", err)
		}
		m.Role = types.Role(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
