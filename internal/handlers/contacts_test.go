package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/remote"
	syncer "chat-sync/internal/sync"
)

func newContactRouter(contacts *mocks.ContactRepositoryMock, api *mocks.RemoteAPIMock) *gin.Engine {
	users := new(mocks.UserRepositoryMock)
	resolver := syncer.NewResolver(users, contacts, api)
	reconciler := syncer.NewReconciler(
		api,
		new(mocks.ChatRepositoryMock),
		new(mocks.MessageRepositoryMock),
		new(mocks.ParticipantRepositoryMock),
		contacts,
		users,
		new(mocks.TombstoneRepositoryMock),
		resolver,
	)
	h := NewContactHandler(contacts, reconciler)
	router := gin.New()
	router.GET("/contacts", h.ListContacts)
	router.POST("/contacts/sync", h.SyncContacts)
	return router
}

func TestListContactsReturnsCache(t *testing.T) {
	contacts := new(mocks.ContactRepositoryMock)
	contacts.On("ListContacts", mock.Anything).Return([]models.Contact{
		{UserID: "a", Username: "alice"},
	}, nil).Once()
	router := newContactRouter(contacts, new(mocks.RemoteAPIMock))

	rec := performJSON(router, http.MethodGet, "/contacts", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestListContactsCacheFailure(t *testing.T) {
	contacts := new(mocks.ContactRepositoryMock)
	contacts.On("ListContacts", mock.Anything).Return(nil, assert.AnError).Once()
	router := newContactRouter(contacts, new(mocks.RemoteAPIMock))

	rec := performJSON(router, http.MethodGet, "/contacts", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSyncContactsRefreshesCache(t *testing.T) {
	contacts := new(mocks.ContactRepositoryMock)
	api := new(mocks.RemoteAPIMock)

	api.On("ListContacts", mock.Anything).Return([]remote.ContactSnapshot{
		{UserID: "a", Username: "alice"},
	}, nil).Once()
	contacts.On("ListContacts", mock.Anything).Return([]models.Contact{}, nil).Once()
	contacts.On("UpsertContact", mock.Anything, mock.MatchedBy(func(c models.Contact) bool {
		return c.UserID == "a" && c.Username == "alice"
	})).Return(nil).Once()
	contacts.On("ListContacts", mock.Anything).Return([]models.Contact{
		{UserID: "a", Username: "alice"},
	}, nil).Once()
	router := newContactRouter(contacts, api)

	rec := performJSON(router, http.MethodPost, "/contacts/sync", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
	contacts.AssertExpectations(t)
}
