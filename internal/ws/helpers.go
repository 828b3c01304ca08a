package ws

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// NewClientMessageID generates a locally unique id used to deduplicate
// optimistic sends against their server echoes.
func NewClientMessageID() string {
	return newConnID()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
