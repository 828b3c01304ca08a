package models

import (
	"database/sql"
	"time"
)

// Message is a locally cached chat message. ClientMessageID is always
// present and unique per chat; ServerID is filled in once the server has
// acknowledged the message.
type Message struct {
	ID              int            `db:"id" json:"id"`
	ServerID        sql.NullString `db:"server_id" json:"server_id,omitempty"`
	ClientMessageID string         `db:"client_message_id" json:"client_message_id"`
	ChatID          string         `db:"chat_id" json:"chat_id"`
	SenderID        string         `db:"sender_id" json:"sender_id"`
	Content         string         `db:"content" json:"content"`
	Timestamp       time.Time      `db:"timestamp" json:"timestamp"`
	IsRead          bool           `db:"is_read" json:"is_read"`
	IsSent          bool           `db:"is_sent" json:"is_sent"`
	IsDelivered     bool           `db:"is_delivered" json:"is_delivered"`
	IsFailed        bool           `db:"is_failed" json:"is_failed"`
}

// DeliveryStatus values carried by inbound status envelopes.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)
