package handlers

import (
	"database/sql"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-sync/internal/observability"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// Account holds the identity of the signed-in user for the lifetime of
// a session. Handlers and background sync read it concurrently.
type Account struct {
	mu     sync.RWMutex
	userID string
}

// SetUserID stores the current account id.
func (a *Account) SetUserID(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userID = userID
}

// UserID returns the current account id, empty when signed out.
func (a *Account) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

func optional(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
