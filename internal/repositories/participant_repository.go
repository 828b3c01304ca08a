package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

var ErrParticipantNotFound = errors.New("participant not found")

// ParticipantRepository abstracts the local membership cache.
type ParticipantRepository interface {
	UpsertParticipant(ctx context.Context, p models.Participant) error
	ListForChat(ctx context.Context, chatID string) ([]models.Participant, error)
	GetByChatAndUser(ctx context.Context, chatID, userID string) (models.Participant, error)
	DeleteParticipant(ctx context.Context, participantID string) error
	DeleteForChat(ctx context.Context, chatID string) error
}

// ParticipantRepo is a sqlx implementation of ParticipantRepository.
type ParticipantRepo struct {
	db *sqlx.DB
}

// NewParticipantRepo constructs a ParticipantRepo.
func NewParticipantRepo(db *sqlx.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

const participantColumns = `participant_id, chat_id, user_id, username, role, joined_at`

// UpsertParticipant inserts or replaces a membership record.
func (r *ParticipantRepo) UpsertParticipant(ctx context.Context, p models.Participant) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO participants (participant_id, chat_id, user_id, username, role, joined_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (participant_id) DO UPDATE SET
            username = EXCLUDED.username,
            role = EXCLUDED.role,
            joined_at = EXCLUDED.joined_at`,
		p.ParticipantID, p.ChatID, p.UserID, p.Username, p.Role, p.JoinedAt)
	return err
}

// ListForChat returns the cached members of a chat.
func (r *ParticipantRepo) ListForChat(ctx context.Context, chatID string) ([]models.Participant, error) {
	var parts []models.Participant
	err := r.db.SelectContext(ctx, &parts, `SELECT `+participantColumns+` FROM participants WHERE chat_id=$1 ORDER BY joined_at ASC`, chatID)
	return parts, err
}

// GetByChatAndUser fetches a single membership record.
func (r *ParticipantRepo) GetByChatAndUser(ctx context.Context, chatID, userID string) (models.Participant, error) {
	var p models.Participant
	err := r.db.GetContext(ctx, &p, `SELECT `+participantColumns+` FROM participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, ErrParticipantNotFound
	}
	return p, err
}

// DeleteParticipant removes one membership record.
func (r *ParticipantRepo) DeleteParticipant(ctx context.Context, participantID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE participant_id=$1`, participantID)
	return err
}

// DeleteForChat purges all membership records of a chat.
func (r *ParticipantRepo) DeleteForChat(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE chat_id=$1`, chatID)
	return err
}
