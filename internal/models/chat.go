package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Chat is the locally cached view of a conversation.
type Chat struct {
	ChatID       string         `db:"chat_id" json:"chat_id"`
	Name         sql.NullString `db:"name" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	CreatorID    string         `db:"creator_id" json:"creator_id"`
	IsGroup      bool           `db:"is_group" json:"is_group"`
	Participants pq.StringArray `db:"participants" json:"participants"`
	UnreadCount  int            `db:"unread_count" json:"unread_count"`
	LastMessage  sql.NullString `db:"last_message" json:"-"`
	LastActivity sql.NullTime   `db:"last_activity" json:"-"`
}

// DisplayName returns the resolved chat name or a stable placeholder.
func (c Chat) DisplayName() string {
	if c.Name.Valid && c.Name.String != "" {
		return c.Name.String
	}
	return "Unnamed Chat"
}

// HasResolvedName reports whether name resolution already produced a
// non-placeholder name for this chat.
func (c Chat) HasResolvedName() bool {
	return c.Name.Valid && c.Name.String != "" && c.Name.String != "Unnamed Chat"
}
