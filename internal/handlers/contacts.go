package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/repositories"
	syncer "chat-sync/internal/sync"
)

// ContactHandler serves the cached contact list and its sync trigger.
type ContactHandler struct {
	contacts   repositories.ContactRepository
	reconciler *syncer.Reconciler
}

// NewContactHandler builds a ContactHandler.
func NewContactHandler(contacts repositories.ContactRepository, reconciler *syncer.Reconciler) *ContactHandler {
	return &ContactHandler{contacts: contacts, reconciler: reconciler}
}

// ListContacts returns the cached contacts.
func (h *ContactHandler) ListContacts(c *gin.Context) {
	contacts, err := h.contacts.ListContacts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load contacts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// SyncContacts runs a contact reconciliation pass and returns the
// refreshed cache.
func (h *ContactHandler) SyncContacts(c *gin.Context) {
	contacts, err := h.reconciler.SyncContacts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}
