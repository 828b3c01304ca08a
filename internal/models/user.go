package models

import (
	"database/sql"
	"time"
)

// User is a locally cached user record, including the account owner.
type User struct {
	UserID    string         `db:"user_id" json:"user_id"`
	Username  string         `db:"username" json:"username"`
	Name      sql.NullString `db:"name" json:"-"`
	Email     sql.NullString `db:"email" json:"-"`
	Picture   sql.NullString `db:"picture" json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
