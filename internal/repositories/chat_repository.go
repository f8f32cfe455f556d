package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"wapulse/internal/models"
)

type ChatRepository interface {
	ListConversations(ctx context.Context, workspaceID string, status models.ConversationStatus) ([]*models.Conversation, error)
	GetConversation(ctx context.Context, workspaceID, id string) (*models.Conversation, error)
	// OpenConversation returns the contact's conversation, creating or
	// reopening it as needed.
	OpenConversation(ctx context.Context, workspaceID, contactID string) (*models.Conversation, error)
	Touch(ctx context.Context, id string, at time.Time, unread bool) error
	ResetUnread(ctx context.Context, id string) error
	Assign(ctx context.Context, workspaceID, id string, accountID *string) error
	Close(ctx context.Context, workspaceID, id string) error

	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error)
	UpdateMessageDelivery(ctx context.Context, id, waMessageID string, status models.MessageStatus) error
	UpdateStatusByWAID(ctx context.Context, waMessageID string, status models.MessageStatus) (int64, error)
}

type chatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepository{db: db}
}

const conversationSelect = `
	SELECT cv.id, cv.workspace_id, cv.contact_id, c.name AS contact_name, c.phone AS contact_phone,
	       cv.status, cv.assigned_to, cv.unread_count, cv.last_message_at, cv.created_at
	FROM conversations cv
	JOIN contacts c ON c.id = cv.contact_id`

func (r *chatRepository) ListConversations(ctx context.Context, workspaceID string, status models.ConversationStatus) ([]*models.Conversation, error) {
	q := conversationSelect + ` WHERE cv.workspace_id = $1`
	args := []any{workspaceID}
	if status != "" {
		q += ` AND cv.status = $2`
		args = append(args, status)
	}
	q += ` ORDER BY cv.last_message_at DESC NULLS LAST`

	var out []*models.Conversation
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatRepository) GetConversation(ctx context.Context, workspaceID, id string) (*models.Conversation, error) {
	var cv models.Conversation
	if err := r.db.GetContext(ctx, &cv, conversationSelect+` WHERE cv.workspace_id = $1 AND cv.id = $2`, workspaceID, id); err != nil {
		return nil, mapErr(err)
	}
	return &cv, nil
}

func (r *chatRepository) OpenConversation(ctx context.Context, workspaceID, contactID string) (*models.Conversation, error) {
	const q = `
		INSERT INTO conversations (id, workspace_id, contact_id, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (workspace_id, contact_id) DO UPDATE SET status = EXCLUDED.status
		RETURNING id`
	var id string
	if err := r.db.GetContext(ctx, &id, q, uuid.NewString(), workspaceID, contactID, models.ConversationOpen); err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	return r.GetConversation(ctx, workspaceID, id)
}

func (r *chatRepository) Touch(ctx context.Context, id string, at time.Time, unread bool) error {
	q := `UPDATE conversations SET last_message_at = $1 WHERE id = $2`
	if unread {
		q = `UPDATE conversations SET last_message_at = $1, unread_count = unread_count + 1 WHERE id = $2`
	}
	_, err := r.db.ExecContext(ctx, q, at, id)
	return err
}

func (r *chatRepository) ResetUnread(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET unread_count = 0 WHERE id = $1`, id)
	return err
}

func (r *chatRepository) Assign(ctx context.Context, workspaceID, id string, accountID *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET assigned_to = $1 WHERE workspace_id = $2 AND id = $3`, accountID, workspaceID, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *chatRepository) Close(ctx context.Context, workspaceID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET status = $1 WHERE workspace_id = $2 AND id = $3`, models.ConversationClosed, workspaceID, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *chatRepository) CreateMessage(ctx context.Context, m *models.Message) error {
	const q = `
		INSERT INTO messages (id, conversation_id, workspace_id, direction, body, wa_message_id, status, sender_id, created_at)
		VALUES (:id, :conversation_id, :workspace_id, :direction, :body, :wa_message_id, :status, :sender_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, m); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *chatRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `
		SELECT id, conversation_id, workspace_id, direction, body, wa_message_id, status, sender_id, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`
	var out []*models.Message
	if err := r.db.SelectContext(ctx, &out, q, conversationID, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatRepository) UpdateMessageDelivery(ctx context.Context, id, waMessageID string, status models.MessageStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET wa_message_id = $1, status = $2 WHERE id = $3`, waMessageID, status, id)
	return err
}

func (r *chatRepository) UpdateStatusByWAID(ctx context.Context, waMessageID string, status models.MessageStatus) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET status = $1 WHERE wa_message_id = $2`, status, waMessageID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
