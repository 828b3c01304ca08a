package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-sync/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts the local chat cache.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	ListChats(ctx context.Context) ([]models.Chat, error)
	UpsertChat(ctx context.Context, chat models.Chat) error
	DeleteChat(ctx context.Context, chatID string) error
	SetName(ctx context.Context, chatID, name string) error
	IncrementUnread(ctx context.Context, chatID string) error
	ResetUnread(ctx context.Context, chatID string) error
	SetLastMessage(ctx context.Context, chatID, content string, at time.Time) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `chat_id, name, created_at, creator_id, is_group, participants, unread_count, last_message, last_activity`

// GetChat fetches a cached chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE chat_id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns all cached chats, most recently active first.
func (r *ChatRepo) ListChats(ctx context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats, `SELECT `+chatColumns+` FROM chats ORDER BY last_activity DESC NULLS LAST, created_at DESC`)
	return chats, err
}

// UpsertChat inserts or replaces a cached chat record.
func (r *ChatRepo) UpsertChat(ctx context.Context, chat models.Chat) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chats (chat_id, name, created_at, creator_id, is_group, participants, unread_count, last_message, last_activity)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (chat_id) DO UPDATE SET
            name = EXCLUDED.name,
            created_at = EXCLUDED.created_at,
            creator_id = EXCLUDED.creator_id,
            is_group = EXCLUDED.is_group,
            participants = EXCLUDED.participants,
            unread_count = EXCLUDED.unread_count,
            last_message = EXCLUDED.last_message,
            last_activity = EXCLUDED.last_activity`,
		chat.ChatID, chat.Name, chat.CreatedAt, chat.CreatorID, chat.IsGroup,
		pq.StringArray(chat.Participants), chat.UnreadCount, chat.LastMessage, chat.LastActivity)
	return err
}

// DeleteChat removes a chat row from the cache.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE chat_id=$1`, chatID)
	return err
}

// SetName stores a resolved display name.
func (r *ChatRepo) SetName(ctx context.Context, chatID, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET name=$2 WHERE chat_id=$1`, chatID, name)
	if err != nil {
		return err
	}
	return requireRow(res, ErrChatNotFound)
}

// IncrementUnread bumps the unread counter by one.
func (r *ChatRepo) IncrementUnread(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chats SET unread_count = unread_count + 1 WHERE chat_id=$1`, chatID)
	return err
}

// ResetUnread zeroes the unread counter.
func (r *ChatRepo) ResetUnread(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chats SET unread_count = 0 WHERE chat_id=$1`, chatID)
	return err
}

// SetLastMessage stores the last-message summary and activity time.
func (r *ChatRepo) SetLastMessage(ctx context.Context, chatID, content string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chats SET last_message=$2, last_activity=$3 WHERE chat_id=$1`, chatID, content, at)
	return err
}

func requireRow(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
