package handlers

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/remote"
	"chat-sync/internal/repositories"
	syncer "chat-sync/internal/sync"
)

type chatFixture struct {
	chats        *mocks.ChatRepositoryMock
	messages     *mocks.MessageRepositoryMock
	participants *mocks.ParticipantRepositoryMock
	contacts     *mocks.ContactRepositoryMock
	users        *mocks.UserRepositoryMock
	tombstones   *mocks.TombstoneRepositoryMock
	api          *mocks.RemoteAPIMock
	account      *Account
	router       *gin.Engine
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		chats:        new(mocks.ChatRepositoryMock),
		messages:     new(mocks.MessageRepositoryMock),
		participants: new(mocks.ParticipantRepositoryMock),
		contacts:     new(mocks.ContactRepositoryMock),
		users:        new(mocks.UserRepositoryMock),
		tombstones:   new(mocks.TombstoneRepositoryMock),
		api:          new(mocks.RemoteAPIMock),
		account:      &Account{},
	}
	resolver := syncer.NewResolver(f.users, f.contacts, f.api)
	reconciler := syncer.NewReconciler(f.api, f.chats, f.messages, f.participants, f.contacts, f.users, f.tombstones, resolver)
	h := NewChatHandler(f.chats, f.messages, f.participants, f.tombstones, f.api, reconciler, f.account, noopAudit())

	router := gin.New()
	router.GET("/chats", h.ListChats)
	router.POST("/chats", h.CreateChat)
	router.POST("/chats/sync", h.SyncChats)
	router.GET("/chats/:chat_id/messages", h.GetChatMessages)
	router.GET("/chats/:chat_id/participants", h.GetParticipants)
	router.POST("/chats/:chat_id/read", h.MarkChatRead)
	router.POST("/chats/:chat_id/name", h.RenameChat)
	router.DELETE("/chats/:chat_id", h.DeleteChat)
	f.router = router
	return f
}

func TestListChatsUsesDisplayName(t *testing.T) {
	f := newChatFixture()
	f.chats.On("ListChats", mock.Anything).Return([]models.Chat{
		{ChatID: "c1", Name: sql.NullString{String: "Team", Valid: true}},
		{ChatID: "c2"},
	}, nil).Once()

	rec := performJSON(f.router, http.MethodGet, "/chats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Team"`)
	assert.Contains(t, rec.Body.String(), `"name":"Unnamed Chat"`)
}

func TestSyncChatsWithoutAccount(t *testing.T) {
	f := newChatFixture()

	rec := performJSON(f.router, http.MethodPost, "/chats/sync", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	f.api.AssertNotCalled(t, "ListChats", mock.Anything)
}

func TestSyncChatsRunsReconciliation(t *testing.T) {
	f := newChatFixture()
	f.account.SetUserID("me")

	f.api.On("ListChats", mock.Anything).Return([]remote.ChatSnapshot{}, nil).Once()
	f.tombstones.On("IDs", mock.Anything, "me").Return([]string{}, nil).Once()
	f.chats.On("ListChats", mock.Anything).Return([]models.Chat{}, nil)
	f.tombstones.On("Cleanup", mock.Anything, "me", []string{}).Return(nil).Once()

	rec := performJSON(f.router, http.MethodPost, "/chats/sync", "")

	require.Equal(t, http.StatusOK, rec.Code)
	f.api.AssertExpectations(t)
	f.tombstones.AssertExpectations(t)
}

func TestGetChatMessagesUnknownChat(t *testing.T) {
	f := newChatFixture()
	f.chats.On("GetChat", mock.Anything, "nope").Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	rec := performJSON(f.router, http.MethodGet, "/chats/nope/messages", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	f.messages.AssertNotCalled(t, "ListForChat", mock.Anything, mock.Anything)
}

func TestGetChatMessagesReturnsCachedHistory(t *testing.T) {
	f := newChatFixture()
	f.chats.On("GetChat", mock.Anything, "c1").Return(models.Chat{ChatID: "c1"}, nil).Once()
	f.messages.On("ListForChat", mock.Anything, "c1").Return([]models.Message{
		{ClientMessageID: "m1", ChatID: "c1", Content: "hi"},
	}, nil).Once()

	rec := performJSON(f.router, http.MethodGet, "/chats/c1/messages", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hi"`)
}

func TestMarkChatRead(t *testing.T) {
	f := newChatFixture()
	f.messages.On("MarkChatRead", mock.Anything, "c1").Return(nil).Once()
	f.chats.On("ResetUnread", mock.Anything, "c1").Return(nil).Once()

	rec := performJSON(f.router, http.MethodPost, "/chats/c1/read", "")

	require.Equal(t, http.StatusOK, rec.Code)
	f.messages.AssertExpectations(t)
	f.chats.AssertExpectations(t)
}

func TestCreateChatCachesRemoteResult(t *testing.T) {
	f := newChatFixture()
	f.api.On("CreateChat", mock.Anything, remote.CreateChatRequest{
		Name:      "Team",
		IsGroup:   true,
		MemberIDs: []string{"u1", "u2"},
	}).Return(remote.ChatSnapshot{
		ChatID:    "c9",
		Name:      "Team",
		CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		CreatorID: "me",
		IsGroup:   true,
		Members: []remote.MemberSnapshot{
			{UserID: "u1", Username: "alice"},
			{UserID: "u2", Username: "bob"},
		},
	}, nil).Once()
	f.chats.On("UpsertChat", mock.Anything, mock.MatchedBy(func(chat models.Chat) bool {
		return chat.ChatID == "c9" && len(chat.Participants) == 2
	})).Return(nil).Once()

	rec := performJSON(f.router, http.MethodPost, "/chats", `{"name":"Team","is_group":true,"member_ids":["u1","u2"]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "c9")
	f.chats.AssertExpectations(t)
}

func TestDeleteChatTombstonesBeforePurge(t *testing.T) {
	f := newChatFixture()
	f.account.SetUserID("me")

	var order []string
	step := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) { order = append(order, name) }
	}

	f.chats.On("GetChat", mock.Anything, "c1").Return(models.Chat{ChatID: "c1", CreatorID: "me"}, nil).Once()
	f.tombstones.On("Add", mock.Anything, mock.MatchedBy(func(ts models.Tombstone) bool {
		return ts.ChatID == "c1" && ts.UserID == "me" && ts.WasCreator
	})).Run(step("tombstone")).Return(nil).Once()
	f.api.On("LeaveChat", mock.Anything, "c1").Run(step("leave")).Return(nil).Once()
	f.messages.On("DeleteForChat", mock.Anything, "c1").Run(step("messages")).Return(nil).Once()
	f.participants.On("DeleteForChat", mock.Anything, "c1").Run(step("participants")).Return(nil).Once()
	f.chats.On("DeleteChat", mock.Anything, "c1").Run(step("chat")).Return(nil).Once()

	rec := performJSON(f.router, http.MethodDelete, "/chats/c1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"tombstone", "leave", "messages", "participants", "chat"}, order)
}

func TestDeleteChatRemoteFailureStillPurges(t *testing.T) {
	f := newChatFixture()
	f.account.SetUserID("me")

	f.chats.On("GetChat", mock.Anything, "c1").Return(models.Chat{ChatID: "c1"}, nil).Once()
	f.tombstones.On("Add", mock.Anything, mock.Anything).Return(nil).Once()
	f.api.On("LeaveChat", mock.Anything, "c1").Return(assert.AnError).Once()
	f.messages.On("DeleteForChat", mock.Anything, "c1").Return(nil).Once()
	f.participants.On("DeleteForChat", mock.Anything, "c1").Return(nil).Once()
	f.chats.On("DeleteChat", mock.Anything, "c1").Return(nil).Once()

	rec := performJSON(f.router, http.MethodDelete, "/chats/c1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	f.chats.AssertExpectations(t)
	f.tombstones.AssertExpectations(t)
}

func TestDeleteChatUnknownChat(t *testing.T) {
	f := newChatFixture()
	f.account.SetUserID("me")
	f.chats.On("GetChat", mock.Anything, "nope").Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	rec := performJSON(f.router, http.MethodDelete, "/chats/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	f.tombstones.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestDeleteChatRollsBackTombstoneOnPurgeFailure(t *testing.T) {
	f := newChatFixture()
	f.account.SetUserID("me")

	f.chats.On("GetChat", mock.Anything, "c1").Return(models.Chat{ChatID: "c1"}, nil).Once()
	f.tombstones.On("Add", mock.Anything, mock.Anything).Return(nil).Once()
	f.api.On("LeaveChat", mock.Anything, "c1").Return(nil).Once()
	f.messages.On("DeleteForChat", mock.Anything, "c1").Return(nil).Once()
	f.participants.On("DeleteForChat", mock.Anything, "c1").Return(nil).Once()
	f.chats.On("DeleteChat", mock.Anything, "c1").Return(assert.AnError).Once()
	f.tombstones.On("Remove", mock.Anything, "c1", "me").Return(nil).Once()

	rec := performJSON(f.router, http.MethodDelete, "/chats/c1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	f.tombstones.AssertExpectations(t)
}

func TestRenameChatAsAdmin(t *testing.T) {
	f := newChatFixture()
	f.account.SetUserID("me")

	f.chats.On("GetChat", mock.Anything, "c1").Return(models.Chat{ChatID: "c1", IsGroup: true}, nil).Once()
	f.participants.On("GetByChatAndUser", mock.Anything, "c1", "me").Return(models.Participant{
		ParticipantID: "c1_me", ChatID: "c1", UserID: "me", Role: models.RoleAdmin,
	}, nil).Once()
	f.chats.On("SetName", mock.Anything, "c1", "New Name").Return(nil).Once()

	rec := performJSON(f.router, http.MethodPost, "/chats/c1/name", `{"name":"New Name"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	f.chats.AssertExpectations(t)
}

func TestRenameChatRequiresAdmin(t *testing.T) {
	f := newChatFixture()
	f.account.SetUserID("me")

	f.chats.On("GetChat", mock.Anything, "c1").Return(models.Chat{ChatID: "c1", IsGroup: true}, nil).Once()
	f.participants.On("GetByChatAndUser", mock.Anything, "c1", "me").Return(models.Participant{
		ParticipantID: "c1_me", ChatID: "c1", UserID: "me", Role: models.RoleMember,
	}, nil).Once()

	rec := performJSON(f.router, http.MethodPost, "/chats/c1/name", `{"name":"New Name"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.chats.AssertNotCalled(t, "SetName", mock.Anything, mock.Anything, mock.Anything)
}

func TestRenameChatRejectsDirectChat(t *testing.T) {
	f := newChatFixture()
	f.account.SetUserID("me")

	f.chats.On("GetChat", mock.Anything, "c1").Return(models.Chat{ChatID: "c1", IsGroup: false}, nil).Once()

	rec := performJSON(f.router, http.MethodPost, "/chats/c1/name", `{"name":"New Name"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.participants.AssertNotCalled(t, "GetByChatAndUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetParticipantsReturnsCache(t *testing.T) {
	f := newChatFixture()
	f.participants.On("ListForChat", mock.Anything, "c1").Return([]models.Participant{
		{ParticipantID: "c1_u1", ChatID: "c1", UserID: "u1", Username: "alice"},
	}, nil).Once()

	rec := performJSON(f.router, http.MethodGet, "/chats/c1/participants", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
}
