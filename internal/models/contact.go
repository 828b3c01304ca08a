package models

import (
	"database/sql"
	"time"
)

// Contact is a locally cached entry of the user's contact list.
type Contact struct {
	UserID     string         `db:"user_id" json:"user_id"`
	Username   string         `db:"username" json:"username"`
	Name       sql.NullString `db:"name" json:"-"`
	Email      sql.NullString `db:"email" json:"-"`
	Picture    sql.NullString `db:"picture" json:"-"`
	Status     sql.NullString `db:"status" json:"-"`
	IsFavorite bool           `db:"is_favorite" json:"is_favorite"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}
