package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-sync/internal/models"
)

// TombstoneRepository records local chat deletions so that server
// snapshots cannot resurrect a chat the user already removed.
type TombstoneRepository interface {
	Add(ctx context.Context, t models.Tombstone) error
	Remove(ctx context.Context, chatID, userID string) error
	IDs(ctx context.Context, userID string) ([]string, error)
	Cleanup(ctx context.Context, userID string, remoteChatIDs []string) error
}

// TombstoneRepo is a sqlx implementation of TombstoneRepository.
type TombstoneRepo struct {
	db *sqlx.DB
}

// NewTombstoneRepo constructs a TombstoneRepo.
func NewTombstoneRepo(db *sqlx.DB) *TombstoneRepo {
	return &TombstoneRepo{db: db}
}

// Add records a deletion marker. Re-deleting the same chat refreshes
// the timestamp instead of failing.
func (r *TombstoneRepo) Add(ctx context.Context, t models.Tombstone) error {
	if t.DeletedAt.IsZero() {
		t.DeletedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO local_deletes (chat_id, user_id, deleted_at, was_creator)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET
            deleted_at = EXCLUDED.deleted_at,
            was_creator = EXCLUDED.was_creator`,
		t.ChatID, t.UserID, t.DeletedAt, t.WasCreator)
	return err
}

// Remove drops a single deletion marker, letting the chat reappear on
// the next reconciliation.
func (r *TombstoneRepo) Remove(ctx context.Context, chatID, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM local_deletes WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	return err
}

// IDs returns the chat ids the user has deleted locally.
func (r *TombstoneRepo) IDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `SELECT chat_id FROM local_deletes WHERE user_id=$1`, userID)
	return ids, err
}

// Cleanup garbage-collects markers whose chat no longer exists on the
// server. remoteChatIDs must be the unfiltered snapshot; an empty
// snapshot means every marker for the user is stale.
func (r *TombstoneRepo) Cleanup(ctx context.Context, userID string, remoteChatIDs []string) error {
	if len(remoteChatIDs) == 0 {
		_, err := r.db.ExecContext(ctx, `DELETE FROM local_deletes WHERE user_id=$1`, userID)
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM local_deletes WHERE user_id=$1 AND chat_id <> ALL($2)`, userID, pq.Array(remoteChatIDs))
	return err
}
