package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/models"
	"chat-sync/internal/remote"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context) ([]models.Chat, error) {
	args := m.Called(ctx)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) UpsertChat(ctx context.Context, chat models.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DeleteChat(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) SetName(ctx context.Context, chatID, name string) error {
	args := m.Called(ctx, chatID, name)
	return args.Error(0)
}

func (m *ChatRepositoryMock) IncrementUnread(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ResetUnread(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) SetLastMessage(ctx context.Context, chatID, content string, at time.Time) error {
	args := m.Called(ctx, chatID, content, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) UpsertMessage(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) GetByServerID(ctx context.Context, serverID string) (models.Message, error) {
	args := m.Called(ctx, serverID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetByClientID(ctx context.Context, chatID, clientMessageID string) (models.Message, error) {
	args := m.Called(ctx, chatID, clientMessageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListForChat(ctx context.Context, chatID string) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) SetServerID(ctx context.Context, chatID, clientMessageID, serverID string) error {
	args := m.Called(ctx, chatID, clientMessageID, serverID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SetStatusByServerID(ctx context.Context, serverID, status string) error {
	args := m.Called(ctx, serverID, status)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkChatRead(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkFailed(ctx context.Context, chatID, clientMessageID string) error {
	args := m.Called(ctx, chatID, clientMessageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) DeleteForChat(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type ParticipantRepositoryMock struct {
	mock.Mock
}

func (m *ParticipantRepositoryMock) UpsertParticipant(ctx context.Context, p models.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ParticipantRepositoryMock) ListForChat(ctx context.Context, chatID string) ([]models.Participant, error) {
	args := m.Called(ctx, chatID)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *ParticipantRepositoryMock) GetByChatAndUser(ctx context.Context, chatID, userID string) (models.Participant, error) {
	args := m.Called(ctx, chatID, userID)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

func (m *ParticipantRepositoryMock) DeleteParticipant(ctx context.Context, participantID string) error {
	args := m.Called(ctx, participantID)
	return args.Error(0)
}

func (m *ParticipantRepositoryMock) DeleteForChat(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type ContactRepositoryMock struct {
	mock.Mock
}

func (m *ContactRepositoryMock) UpsertContact(ctx context.Context, c models.Contact) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *ContactRepositoryMock) ListContacts(ctx context.Context) ([]models.Contact, error) {
	args := m.Called(ctx)
	var list []models.Contact
	if val := args.Get(0); val != nil {
		list = val.([]models.Contact)
	}
	return list, args.Error(1)
}

func (m *ContactRepositoryMock) GetContact(ctx context.Context, userID string) (models.Contact, error) {
	args := m.Called(ctx, userID)
	var c models.Contact
	if val := args.Get(0); val != nil {
		c = val.(models.Contact)
	}
	return c, args.Error(1)
}

func (m *ContactRepositoryMock) DeleteContact(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) UpsertUser(ctx context.Context, u models.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var u models.User
	if val := args.Get(0); val != nil {
		u = val.(models.User)
	}
	return u, args.Error(1)
}

type TombstoneRepositoryMock struct {
	mock.Mock
}

func (m *TombstoneRepositoryMock) Add(ctx context.Context, t models.Tombstone) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TombstoneRepositoryMock) Remove(ctx context.Context, chatID, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *TombstoneRepositoryMock) IDs(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *TombstoneRepositoryMock) Cleanup(ctx context.Context, userID string, remoteChatIDs []string) error {
	args := m.Called(ctx, userID, remoteChatIDs)
	return args.Error(0)
}

type RemoteAPIMock struct {
	mock.Mock
}

func (m *RemoteAPIMock) ListChats(ctx context.Context) ([]remote.ChatSnapshot, error) {
	args := m.Called(ctx)
	var list []remote.ChatSnapshot
	if val := args.Get(0); val != nil {
		list = val.([]remote.ChatSnapshot)
	}
	return list, args.Error(1)
}

func (m *RemoteAPIMock) ListContacts(ctx context.Context) ([]remote.ContactSnapshot, error) {
	args := m.Called(ctx)
	var list []remote.ContactSnapshot
	if val := args.Get(0); val != nil {
		list = val.([]remote.ContactSnapshot)
	}
	return list, args.Error(1)
}

func (m *RemoteAPIMock) ListMembers(ctx context.Context, chatID string) ([]remote.MemberSnapshot, error) {
	args := m.Called(ctx, chatID)
	var list []remote.MemberSnapshot
	if val := args.Get(0); val != nil {
		list = val.([]remote.MemberSnapshot)
	}
	return list, args.Error(1)
}

func (m *RemoteAPIMock) GetUser(ctx context.Context, userID string) (remote.UserSnapshot, error) {
	args := m.Called(ctx, userID)
	var user remote.UserSnapshot
	if val := args.Get(0); val != nil {
		user = val.(remote.UserSnapshot)
	}
	return user, args.Error(1)
}

func (m *RemoteAPIMock) CreateChat(ctx context.Context, req remote.CreateChatRequest) (remote.ChatSnapshot, error) {
	args := m.Called(ctx, req)
	var chat remote.ChatSnapshot
	if val := args.Get(0); val != nil {
		chat = val.(remote.ChatSnapshot)
	}
	return chat, args.Error(1)
}

func (m *RemoteAPIMock) LeaveChat(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *RemoteAPIMock) SendMessage(ctx context.Context, req remote.SendMessageRequest) (remote.SendMessageResponse, error) {
	args := m.Called(ctx, req)
	var resp remote.SendMessageResponse
	if val := args.Get(0); val != nil {
		resp = val.(remote.SendMessageResponse)
	}
	return resp, args.Error(1)
}
