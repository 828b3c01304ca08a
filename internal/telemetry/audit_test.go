package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/telemetry"
)

func TestEmitBuildsEnvelope(t *testing.T) {
	publisher := new(mocks.AuditPublisherMock)
	publisher.On("Publish", mock.Anything, "audit_log.chat_sync", mock.Anything).Return(nil).Once()
	emitter := telemetry.NewAuditEmitter(publisher, "audit_log.chat_sync", "chat-sync", "test")

	userID := "me"
	emitter.Emit(context.Background(), "info", "chat deleted c1", "conn-1", &userID)

	require.Len(t, publisher.Published, 1)
	envelope, ok := publisher.Published[0].(telemetry.AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, 1, envelope.SchemaVersion)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "chat-sync", envelope.Service)
	assert.Equal(t, "test", envelope.Environment)
	assert.Equal(t, "conn-1", envelope.ConnID)
	assert.Equal(t, "me", *envelope.UserID)
	assert.Equal(t, "info", envelope.Payload.Level)
	assert.Equal(t, "chat deleted c1", envelope.Payload.Text)
	assert.NotEmpty(t, envelope.OccurredAt)
	publisher.AssertExpectations(t)
}

func TestEmitSessionFormatsReason(t *testing.T) {
	publisher := new(mocks.AuditPublisherMock)
	publisher.On("Publish", mock.Anything, "audit", mock.Anything).Return(nil).Times(2)
	emitter := telemetry.NewAuditEmitter(publisher, "audit", "chat-sync", "test")

	emitter.EmitSession(context.Background(), "disconnected", "liveness timeout", nil)
	emitter.EmitSession(context.Background(), "connected", "", nil)

	require.Len(t, publisher.Published, 2)
	first := publisher.Published[0].(telemetry.AuditEnvelope)
	second := publisher.Published[1].(telemetry.AuditEnvelope)
	assert.Equal(t, "session disconnected: liveness timeout", first.Payload.Text)
	assert.Equal(t, "session connected", second.Payload.Text)
}

func TestEmitSyncFormatsOutcome(t *testing.T) {
	publisher := new(mocks.AuditPublisherMock)
	publisher.On("Publish", mock.Anything, "audit", mock.Anything).Return(nil).Once()
	emitter := telemetry.NewAuditEmitter(publisher, "audit", "chat-sync", "test")

	emitter.EmitSync(context.Background(), "chats", "ok", 7, nil)

	require.Len(t, publisher.Published, 1)
	envelope := publisher.Published[0].(telemetry.AuditEnvelope)
	assert.Equal(t, "sync chats ok applied=7", envelope.Payload.Text)
}

func TestEmitNilEmitterIsNoop(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	emitter.Emit(context.Background(), "info", "dropped", "", nil)
	emitter.EmitSession(context.Background(), "connected", "", nil)
}
