package models

import "time"

// Participant role values.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Participant is a chat member. ParticipantID is the composite key
// "<chat_id>_<user_id>".
type Participant struct {
	ParticipantID string    `db:"participant_id" json:"participant_id"`
	ChatID        string    `db:"chat_id" json:"chat_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Username      string    `db:"username" json:"username"`
	Role          string    `db:"role" json:"role"`
	JoinedAt      time.Time `db:"joined_at" json:"joined_at"`
}

// ParticipantKey builds the composite participant id.
func ParticipantKey(chatID, userID string) string {
	return chatID + "_" + userID
}

// IsAdmin reports whether the participant holds the admin role.
func (p Participant) IsAdmin() bool {
	return p.Role == RoleAdmin
}
