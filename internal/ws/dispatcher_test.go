package ws

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
)

func TestHandleFrameChatPersistsMessage(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	chatRepo := new(mocks.ChatRepositoryMock)
	d := NewDispatcher(messageRepo, chatRepo, nil, "me")

	messageRepo.On("GetByServerID", mock.Anything, "srv-1").Return(nil, repositories.ErrMessageNotFound).Once()
	messageRepo.On("UpsertMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.ServerID.String == "srv-1" &&
			msg.ClientMessageID == "srv-1" &&
			msg.ChatID == "chat-1" &&
			msg.SenderID == "other" &&
			msg.Content == "hello" &&
			msg.IsSent && msg.IsDelivered && !msg.IsRead
	})).Return(nil).Once()
	chatRepo.On("SetLastMessage", mock.Anything, "chat-1", "hello", mock.Anything).Return(nil).Once()
	chatRepo.On("IncrementUnread", mock.Anything, "chat-1").Return(nil).Once()

	frame := `{"type":"chat","message":{"message_id":"srv-1","chat_id":"chat-1","sender_id":"other","content":"hello","sent_at":"2026-08-29T10:00:00Z"}}`
	d.HandleFrame(context.Background(), []byte(frame))

	messageRepo.AssertExpectations(t)
	chatRepo.AssertExpectations(t)

	select {
	case event := <-d.Events():
		assert.Equal(t, models.EventChat, event.Kind)
		assert.Equal(t, "hello", event.Chat.Content)
	default:
		t.Fatal("expected a stream event notification")
	}
}

func TestHandleFrameChatFromSelfSkipsUnread(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	chatRepo := new(mocks.ChatRepositoryMock)
	d := NewDispatcher(messageRepo, chatRepo, nil, "me")

	messageRepo.On("GetByServerID", mock.Anything, "srv-2").Return(nil, repositories.ErrMessageNotFound).Once()
	messageRepo.On("UpsertMessage", mock.Anything, mock.Anything).Return(nil).Once()
	chatRepo.On("SetLastMessage", mock.Anything, "chat-1", mock.Anything, mock.Anything).Return(nil).Once()

	frame := `{"type":"chat","message":{"message_id":"srv-2","chat_id":"chat-1","sender_id":"me","content":"mine","sent_at":"2026-08-29T10:00:00Z"}}`
	d.HandleFrame(context.Background(), []byte(frame))

	chatRepo.AssertNotCalled(t, "IncrementUnread", mock.Anything, mock.Anything)
	messageRepo.AssertExpectations(t)
	chatRepo.AssertExpectations(t)
}

func TestHandleFrameChatDuplicateAdvancesDelivery(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	chatRepo := new(mocks.ChatRepositoryMock)
	d := NewDispatcher(messageRepo, chatRepo, nil, "me")

	existing := models.Message{ClientMessageID: "client-7", ChatID: "chat-1"}
	messageRepo.On("GetByServerID", mock.Anything, "srv-7").Return(existing, nil).Once()
	messageRepo.On("SetStatusByServerID", mock.Anything, "srv-7", models.StatusDelivered).Return(nil).Once()
	chatRepo.On("SetLastMessage", mock.Anything, "chat-1", mock.Anything, mock.Anything).Return(nil).Once()
	chatRepo.On("IncrementUnread", mock.Anything, "chat-1").Return(nil).Once()

	frame := `{"type":"chat","message":{"message_id":"srv-7","chat_id":"chat-1","sender_id":"other","content":"again","sent_at":"2026-08-29T10:00:00Z"}}`
	d.HandleFrame(context.Background(), []byte(frame))

	messageRepo.AssertNotCalled(t, "UpsertMessage", mock.Anything, mock.Anything)
	messageRepo.AssertExpectations(t)
}

func TestHandleFrameStatusCorrelation(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	d := NewDispatcher(messageRepo, new(mocks.ChatRepositoryMock), nil, "me")

	messageRepo.On("SetStatusByServerID", mock.Anything, "srv-42", models.StatusRead).Return(nil).Once()

	frame := `{"type":"message-status","message":{"message_id":"srv-42","chat_id":"chat-1","sender_id":"other","status":"read","timestamp":"2026-08-29T10:00:00Z"}}`
	d.HandleFrame(context.Background(), []byte(frame))

	messageRepo.AssertExpectations(t)
}

func TestHandleFrameStatusUnknownValueIgnored(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	d := NewDispatcher(messageRepo, new(mocks.ChatRepositoryMock), nil, "me")

	frame := `{"type":"status","message":{"message_id":"srv-42","status":"exploded"}}`
	d.HandleFrame(context.Background(), []byte(frame))

	messageRepo.AssertNotCalled(t, "SetStatusByServerID", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleFrameStatusUnknownMessageIgnored(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	d := NewDispatcher(messageRepo, new(mocks.ChatRepositoryMock), nil, "me")

	messageRepo.On("SetStatusByServerID", mock.Anything, "srv-404", models.StatusRead).Return(repositories.ErrMessageNotFound).Once()

	frame := `{"type":"status","message":{"message_id":"srv-404","status":"read"}}`
	require.NotPanics(t, func() {
		d.HandleFrame(context.Background(), []byte(frame))
	})
	messageRepo.AssertExpectations(t)
}

func TestHandleFrameMalformedDropped(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	chatRepo := new(mocks.ChatRepositoryMock)
	d := NewDispatcher(messageRepo, chatRepo, nil, "me")

	require.NotPanics(t, func() {
		d.HandleFrame(context.Background(), []byte(`{"type":"chat","message":`))
	})
	messageRepo.AssertNotCalled(t, "UpsertMessage", mock.Anything, mock.Anything)
}

func TestHandleFrameUnknownTypeIgnored(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	d := NewDispatcher(messageRepo, new(mocks.ChatRepositoryMock), nil, "me")

	d.HandleFrame(context.Background(), []byte(`{"type":"presence","message":{}}`))
	messageRepo.AssertNotCalled(t, "UpsertMessage", mock.Anything, mock.Anything)

	select {
	case <-d.Events():
		t.Fatal("unknown envelope must not notify observers")
	default:
	}
}

func TestSetSelfIDConcurrentWithFrames(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	chatRepo := new(mocks.ChatRepositoryMock)
	d := NewDispatcher(messageRepo, chatRepo, nil, "me")

	existing := models.Message{ClientMessageID: "client-9", ChatID: "chat-1"}
	messageRepo.On("GetByServerID", mock.Anything, "srv-9").Return(existing, nil)
	messageRepo.On("SetStatusByServerID", mock.Anything, "srv-9", models.StatusDelivered).Return(nil)
	chatRepo.On("SetLastMessage", mock.Anything, "chat-1", mock.Anything, mock.Anything).Return(nil)
	chatRepo.On("IncrementUnread", mock.Anything, "chat-1").Return(nil)

	frame := []byte(`{"type":"chat","message":{"message_id":"srv-9","chat_id":"chat-1","sender_id":"other","content":"hi","sent_at":"2026-08-29T10:00:00Z"}}`)

	// Credential changes land while the read loop keeps delivering
	// frames; meaningful under the race detector.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			d.HandleFrame(context.Background(), frame)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			d.SetSelfID("user-" + strconv.Itoa(i))
		}
	}()
	wg.Wait()

	assert.Equal(t, "user-49", d.currentSelfID())
}

func TestHandleFrameEmptyIgnored(t *testing.T) {
	d := NewDispatcher(new(mocks.MessageRepositoryMock), new(mocks.ChatRepositoryMock), nil, "me")
	require.NotPanics(t, func() {
		d.HandleFrame(context.Background(), nil)
	})
}
