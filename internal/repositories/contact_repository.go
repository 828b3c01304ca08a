package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

var ErrContactNotFound = errors.New("contact not found")

// ContactRepository abstracts the local contact cache.
type ContactRepository interface {
	UpsertContact(ctx context.Context, c models.Contact) error
	ListContacts(ctx context.Context) ([]models.Contact, error)
	GetContact(ctx context.Context, userID string) (models.Contact, error)
	DeleteContact(ctx context.Context, userID string) error
}

// ContactRepo is a sqlx implementation of ContactRepository.
type ContactRepo struct {
	db *sqlx.DB
}

// NewContactRepo constructs a ContactRepo.
func NewContactRepo(db *sqlx.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

const contactColumns = `user_id, username, name, email, picture, status, is_favorite, updated_at`

// UpsertContact inserts or refreshes a contact record.
func (r *ContactRepo) UpsertContact(ctx context.Context, c models.Contact) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO contacts (user_id, username, name, email, picture, status, is_favorite, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (user_id) DO UPDATE SET
            username = EXCLUDED.username,
            name = EXCLUDED.name,
            email = EXCLUDED.email,
            picture = EXCLUDED.picture,
            status = EXCLUDED.status,
            is_favorite = EXCLUDED.is_favorite,
            updated_at = EXCLUDED.updated_at`,
		c.UserID, c.Username, c.Name, c.Email, c.Picture, c.Status, c.IsFavorite, c.UpdatedAt)
	return err
}

// ListContacts returns all cached contacts ordered by username.
func (r *ContactRepo) ListContacts(ctx context.Context) ([]models.Contact, error) {
	var contacts []models.Contact
	err := r.db.SelectContext(ctx, &contacts, `SELECT `+contactColumns+` FROM contacts ORDER BY username ASC`)
	return contacts, err
}

// GetContact fetches one contact by user id.
func (r *ContactRepo) GetContact(ctx context.Context, userID string) (models.Contact, error) {
	var c models.Contact
	err := r.db.GetContext(ctx, &c, `SELECT `+contactColumns+` FROM contacts WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contact{}, ErrContactNotFound
	}
	return c, err
}

// DeleteContact removes a contact record.
func (r *ContactRepo) DeleteContact(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE user_id=$1`, userID)
	return err
}
