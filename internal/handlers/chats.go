package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/models"
	"chat-sync/internal/remote"
	"chat-sync/internal/repositories"
	syncer "chat-sync/internal/sync"
	"chat-sync/internal/telemetry"
)

// ChatHandler serves cached conversation data and the chat lifecycle
// operations (sync, create, delete, mark read).
type ChatHandler struct {
	chats        repositories.ChatRepository
	messages     repositories.MessageRepository
	participants repositories.ParticipantRepository
	tombstones   repositories.TombstoneRepository
	api          remote.API
	reconciler   *syncer.Reconciler
	account      *Account
	audit        *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	participants repositories.ParticipantRepository,
	tombstones repositories.TombstoneRepository,
	api remote.API,
	reconciler *syncer.Reconciler,
	account *Account,
	audit *telemetry.AuditEmitter,
) *ChatHandler {
	return &ChatHandler{
		chats:        chats,
		messages:     messages,
		participants: participants,
		tombstones:   tombstones,
		api:          api,
		reconciler:   reconciler,
		account:      account,
		audit:        audit,
	}
}

// ListChats returns the cached conversations.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.ListChats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	type chatResponse struct {
		ChatID       string    `json:"chat_id"`
		Name         string    `json:"name"`
		CreatedAt    time.Time `json:"created_at"`
		CreatorID    string    `json:"creator_id"`
		IsGroup      bool      `json:"is_group"`
		Participants []string  `json:"participants"`
		UnreadCount  int       `json:"unread_count"`
		LastMessage  string    `json:"last_message,omitempty"`
	}

	responses := make([]chatResponse, 0, len(chats))
	for _, chat := range chats {
		responses = append(responses, chatResponse{
			ChatID:       chat.ChatID,
			Name:         chat.DisplayName(),
			CreatedAt:    chat.CreatedAt,
			CreatorID:    chat.CreatorID,
			IsGroup:      chat.IsGroup,
			Participants: chat.Participants,
			UnreadCount:  chat.UnreadCount,
			LastMessage:  chat.LastMessage.String,
		})
	}

	c.JSON(http.StatusOK, gin.H{"chats": responses})
}

// SyncChats runs a conversation reconciliation pass and returns the
// refreshed cache.
func (h *ChatHandler) SyncChats(c *gin.Context) {
	userID := h.account.UserID()
	if userID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no active account"})
		return
	}

	chats, err := h.reconciler.SyncChats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}
	h.audit.EmitSync(c.Request.Context(), "chats", "ok", len(chats), &userID)
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChatMessages returns the cached messages of one conversation.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	if _, err := h.chats.GetChat(c.Request.Context(), chatID); err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return
	}

	msgs, err := h.messages.ListForChat(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetParticipants returns the cached members of one conversation.
func (h *ChatHandler) GetParticipants(c *gin.Context) {
	parts, err := h.participants.ListForChat(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": parts})
}

// SyncParticipants reconciles one conversation's member cache.
func (h *ChatHandler) SyncParticipants(c *gin.Context) {
	parts, err := h.reconciler.SyncParticipants(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": parts})
}

type createChatRequest struct {
	Name      string   `json:"name"`
	IsGroup   bool     `json:"is_group"`
	MemberIDs []string `json:"member_ids" binding:"required"`
}

// CreateChat creates a conversation remotely and caches it.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.api.CreateChat(c.Request.Context(), remote.CreateChatRequest{
		Name:      req.Name,
		IsGroup:   req.IsGroup,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote create failed"})
		return
	}

	chat := models.Chat{
		ChatID:    snap.ChatID,
		Name:      optional(snap.Name),
		CreatedAt: snap.CreatedAt,
		CreatorID: snap.CreatorID,
		IsGroup:   snap.IsGroup,
	}
	for _, m := range snap.Members {
		chat.Participants = append(chat.Participants, m.UserID)
	}
	if err := h.chats.UpsertChat(c.Request.Context(), chat); err != nil {
		log.Printf("created chat cache write failed chat_id=%s: %v", snap.ChatID, err)
	}
	c.JSON(http.StatusCreated, gin.H{"chat_id": snap.ChatID})
}

// DeleteChat removes a conversation: tombstone first so a racing
// reconciliation cannot resurrect it, then the remote leave call, then
// the local purge. A failed leave still purges locally; the tombstone
// holds until the server snapshot confirms.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := h.account.UserID()
	if userID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no active account"})
		return
	}

	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return
	}

	tombstone := models.Tombstone{
		ChatID:     chatID,
		UserID:     userID,
		DeletedAt:  time.Now().UTC(),
		WasCreator: chat.CreatorID == userID,
	}
	if err := h.tombstones.Add(c.Request.Context(), tombstone); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record deletion"})
		return
	}

	if err := h.api.LeaveChat(c.Request.Context(), chatID); err != nil {
		log.Printf("remote leave failed chat_id=%s, deferring to tombstone: %v", chatID, err)
	}

	if err := h.messages.DeleteForChat(c.Request.Context(), chatID); err != nil {
		log.Printf("message purge failed chat_id=%s: %v", chatID, err)
	}
	if err := h.participants.DeleteForChat(c.Request.Context(), chatID); err != nil {
		log.Printf("participant purge failed chat_id=%s: %v", chatID, err)
	}
	if err := h.chats.DeleteChat(c.Request.Context(), chatID); err != nil {
		// The chat is still cached, so the tombstone would wrongly hide
		// it from the next reconciliation pass.
		if rmErr := h.tombstones.Remove(c.Request.Context(), chatID, userID); rmErr != nil {
			log.Printf("tombstone rollback failed chat_id=%s: %v", chatID, rmErr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat"})
		return
	}

	h.audit.Emit(c.Request.Context(), "info", "chat deleted "+chatID, requestIDFromContext(c), &userID)
	c.JSON(http.StatusOK, gin.H{"deleted": chatID})
}

type renameChatRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenameChat sets a group chat's display name. Direct chats derive
// their name from the counterpart and cannot be renamed; only an admin
// member may rename a group.
func (h *ChatHandler) RenameChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := h.account.UserID()
	if userID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no active account"})
		return
	}

	var req renameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return
	}
	if !chat.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direct chats cannot be renamed"})
		return
	}

	member, err := h.participants.GetByChatAndUser(c.Request.Context(), chatID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this chat"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load membership"})
		return
	}
	if member.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "only admins may rename a chat"})
		return
	}

	if err := h.chats.SetName(c.Request.Context(), chatID, req.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "name": req.Name})
}

// MarkChatRead flags the chat's messages read and zeroes its unread
// counter.
func (h *ChatHandler) MarkChatRead(c *gin.Context) {
	chatID := c.Param("chat_id")
	if err := h.messages.MarkChatRead(c.Request.Context(), chatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}
	if err := h.chats.ResetUnread(c.Request.Context(), chatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset unread counter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID})
}
