package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/models"
	"chat-sync/internal/payload"
	"chat-sync/internal/remote"
	"chat-sync/internal/repositories"
	"chat-sync/internal/ws"
)

// MessageHandler owns the optimistic send path: a local record with a
// client-generated id first, then the remote submission, then the
// server-id correlation.
type MessageHandler struct {
	messages repositories.MessageRepository
	chats    repositories.ChatRepository
	api      remote.API
	codec    *payload.Codec
	account  *Account
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, chats repositories.ChatRepository, api remote.API, codec *payload.Codec, account *Account) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		chats:    chats,
		api:      api,
		codec:    codec,
		account:  account,
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chat_id" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// SendMessage submits a message. The local record survives a remote
// failure flagged as failed, so the UI can offer a retry.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := h.account.UserID()
	if userID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no active account"})
		return
	}

	clientID := ws.NewClientMessageID()
	now := time.Now().UTC()
	optimistic := models.Message{
		ClientMessageID: clientID,
		ChatID:          req.ChatID,
		SenderID:        userID,
		Content:         req.Content,
		Timestamp:       now,
	}
	if err := h.messages.UpsertMessage(c.Request.Context(), optimistic); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	resp, err := h.api.SendMessage(c.Request.Context(), remote.SendMessageRequest{
		ChatID:          req.ChatID,
		ClientMessageID: clientID,
		Content:         h.codec.Seal(req.Content),
	})
	if err != nil {
		if markErr := h.messages.MarkFailed(c.Request.Context(), req.ChatID, clientID); markErr != nil {
			log.Printf("failed-send flag write failed client_id=%s: %v", clientID, markErr)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote send failed", "client_message_id": clientID})
		return
	}

	if err := h.messages.SetServerID(c.Request.Context(), req.ChatID, clientID, resp.MessageID); err != nil {
		log.Printf("server id correlation failed client_id=%s server_id=%s: %v", clientID, resp.MessageID, err)
	}
	if err := h.chats.SetLastMessage(c.Request.Context(), req.ChatID, req.Content, now); err != nil {
		log.Printf("last-message update failed chat_id=%s: %v", req.ChatID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"client_message_id": clientID,
		"message_id":        resp.MessageID,
	})
}

type retrySendRequest struct {
	ChatID          string `json:"chat_id" binding:"required"`
	ClientMessageID string `json:"client_message_id" binding:"required"`
}

// RetrySend resubmits a message whose earlier submission failed. The
// stored record is reused as-is; a record that already carries a server
// id needs no retry.
func (h *MessageHandler) RetrySend(c *gin.Context) {
	var req retrySendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.account.UserID() == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no active account"})
		return
	}

	msg, err := h.messages.GetByClientID(c.Request.Context(), req.ChatID, req.ClientMessageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return
	}
	if msg.ServerID.Valid {
		c.JSON(http.StatusConflict, gin.H{"error": "message already submitted", "message_id": msg.ServerID.String})
		return
	}

	resp, err := h.api.SendMessage(c.Request.Context(), remote.SendMessageRequest{
		ChatID:          req.ChatID,
		ClientMessageID: req.ClientMessageID,
		Content:         h.codec.Seal(msg.Content),
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote send failed", "client_message_id": req.ClientMessageID})
		return
	}

	if err := h.messages.SetServerID(c.Request.Context(), req.ChatID, req.ClientMessageID, resp.MessageID); err != nil {
		log.Printf("server id correlation failed client_id=%s server_id=%s: %v", req.ClientMessageID, resp.MessageID, err)
	}
	if err := h.chats.SetLastMessage(c.Request.Context(), req.ChatID, msg.Content, time.Now().UTC()); err != nil {
		log.Printf("last-message update failed chat_id=%s: %v", req.ChatID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"client_message_id": req.ClientMessageID,
		"message_id":        resp.MessageID,
	})
}
