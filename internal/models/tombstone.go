package models

import "time"

// Tombstone records a locally requested chat deletion. It keeps
// reconciliation from resurrecting the chat until the server snapshot
// confirms the deletion.
type Tombstone struct {
	ChatID     string    `db:"chat_id" json:"chat_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	DeletedAt  time.Time `db:"deleted_at" json:"deleted_at"`
	WasCreator bool      `db:"was_creator" json:"was_creator"`
}
