package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository abstracts the local message cache.
type MessageRepository interface {
	UpsertMessage(ctx context.Context, msg models.Message) error
	GetByServerID(ctx context.Context, serverID string) (models.Message, error)
	GetByClientID(ctx context.Context, chatID, clientMessageID string) (models.Message, error)
	ListForChat(ctx context.Context, chatID string) ([]models.Message, error)
	SetServerID(ctx context.Context, chatID, clientMessageID, serverID string) error
	SetStatusByServerID(ctx context.Context, serverID, status string) error
	MarkChatRead(ctx context.Context, chatID string) error
	MarkFailed(ctx context.Context, chatID, clientMessageID string) error
	DeleteForChat(ctx context.Context, chatID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, server_id, client_message_id, chat_id, sender_id, content, timestamp, is_read, is_sent, is_delivered, is_failed`

// UpsertMessage inserts a message, or updates it when the client id is
// already present in the chat. The (chat_id, client_message_id) pair is the
// de-duplication key until a server id exists.
func (r *MessageRepo) UpsertMessage(ctx context.Context, msg models.Message) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO messages (server_id, client_message_id, chat_id, sender_id, content, timestamp, is_read, is_sent, is_delivered, is_failed)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (chat_id, client_message_id) DO UPDATE SET
            server_id = COALESCE(EXCLUDED.server_id, messages.server_id),
            content = EXCLUDED.content,
            timestamp = EXCLUDED.timestamp,
            is_read = EXCLUDED.is_read,
            is_sent = EXCLUDED.is_sent,
            is_delivered = EXCLUDED.is_delivered,
            is_failed = EXCLUDED.is_failed`,
		msg.ServerID, msg.ClientMessageID, msg.ChatID, msg.SenderID, msg.Content,
		msg.Timestamp, msg.IsRead, msg.IsSent, msg.IsDelivered, msg.IsFailed)
	return err
}

// GetByServerID fetches a message by its server-assigned id.
func (r *MessageRepo) GetByServerID(ctx context.Context, serverID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE server_id=$1`, serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// GetByClientID fetches a message by its client-generated id within a chat.
func (r *MessageRepo) GetByClientID(ctx context.Context, chatID, clientMessageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 AND client_message_id=$2`, chatID, clientMessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListForChat returns messages for a chat in send order.
func (r *MessageRepo) ListForChat(ctx context.Context, chatID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 ORDER BY timestamp ASC, id ASC`, chatID)
	return msgs, err
}

// SetServerID correlates a server-assigned id back to an optimistic record.
func (r *MessageRepo) SetServerID(ctx context.Context, chatID, clientMessageID, serverID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET server_id=$3, is_sent=TRUE, is_failed=FALSE WHERE chat_id=$1 AND client_message_id=$2`, chatID, clientMessageID, serverID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrMessageNotFound)
}

// SetStatusByServerID advances exactly one delivery flag on the message with
// the given server id.
func (r *MessageRepo) SetStatusByServerID(ctx context.Context, serverID, status string) error {
	var query string
	switch status {
	case models.StatusSent:
		query = `UPDATE messages SET is_sent=TRUE WHERE server_id=$1`
	case models.StatusDelivered:
		query = `UPDATE messages SET is_delivered=TRUE WHERE server_id=$1`
	case models.StatusRead:
		query = `UPDATE messages SET is_read=TRUE WHERE server_id=$1`
	default:
		return errors.New("unknown message status: " + status)
	}
	res, err := r.db.ExecContext(ctx, query, serverID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrMessageNotFound)
}

// MarkChatRead flags every message in the chat as read.
func (r *MessageRepo) MarkChatRead(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read=TRUE WHERE chat_id=$1`, chatID)
	return err
}

// MarkFailed flags an optimistic record whose submission failed.
func (r *MessageRepo) MarkFailed(ctx context.Context, chatID, clientMessageID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET is_failed=TRUE WHERE chat_id=$1 AND client_message_id=$2`, chatID, clientMessageID)
	return err
}

// DeleteForChat purges every cached message of a chat.
func (r *MessageRepo) DeleteForChat(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id=$1`, chatID)
	return err
}
