package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts the local user cache.
type UserRepository interface {
	UpsertUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, userID string) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// UpsertUser inserts or refreshes a user record.
func (r *UserRepo) UpsertUser(ctx context.Context, u models.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (user_id, username, name, email, picture, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id) DO UPDATE SET
            username = EXCLUDED.username,
            name = COALESCE(EXCLUDED.name, users.name),
            email = COALESCE(EXCLUDED.email, users.email),
            picture = COALESCE(EXCLUDED.picture, users.picture),
            updated_at = EXCLUDED.updated_at`,
		u.UserID, u.Username, u.Name, u.Email, u.Picture, u.CreatedAt, u.UpdatedAt)
	return err
}

// GetUser fetches one user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT user_id, username, name, email, picture, created_at, updated_at FROM users WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}
