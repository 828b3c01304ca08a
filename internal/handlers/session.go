package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/remote"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/ws"
)

// SessionHandler exposes the session state machine on the control API.
type SessionHandler struct {
	session *ws.Session
	remote  *remote.Client
	account *Account
	selfID  interface{ SetSelfID(string) }
	audit   *telemetry.AuditEmitter
}

// NewSessionHandler builds a SessionHandler. dispatcher may be nil in
// tests that do not exercise inbound dispatch.
func NewSessionHandler(session *ws.Session, remoteClient *remote.Client, account *Account, dispatcher interface{ SetSelfID(string) }, audit *telemetry.AuditEmitter) *SessionHandler {
	return &SessionHandler{
		session: session,
		remote:  remoteClient,
		account: account,
		selfID:  dispatcher,
		audit:   audit,
	}
}

type connectRequest struct {
	Token  string `json:"token" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
}

// Connect stores the credential and establishes the stream.
func (h *SessionHandler) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.account.SetUserID(req.UserID)
	if h.selfID != nil {
		h.selfID.SetSelfID(req.UserID)
	}
	if h.remote != nil {
		h.remote.SetToken(req.Token)
	}

	if err := h.session.Connect(c.Request.Context(), req.Token); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "state": h.session.Status().String()})
		return
	}

	userID := req.UserID
	h.audit.EmitSession(c.Request.Context(), h.session.Status().String(), "", &userID)
	c.JSON(http.StatusOK, gin.H{"state": h.session.Status().String()})
}

// Disconnect tears the stream down and forgets the credential.
func (h *SessionHandler) Disconnect(c *gin.Context) {
	h.session.Disconnect()
	userID := h.account.UserID()
	h.audit.EmitSession(c.Request.Context(), h.session.Status().String(), "requested", &userID)
	c.JSON(http.StatusOK, gin.H{"state": h.session.Status().String()})
}

type reconnectRequest struct {
	Token string `json:"token"`
}

// Reconnect retries the connection with the bounded retry policy.
func (h *SessionHandler) Reconnect(c *gin.Context) {
	var req reconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Token != "" && h.remote != nil {
		h.remote.SetToken(req.Token)
	}
	if err := h.session.Reconnect(c.Request.Context(), req.Token); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "state": h.session.Status().String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.session.Status().String()})
}

// Status reports the session state.
func (h *SessionHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.session.Status().String()})
}
