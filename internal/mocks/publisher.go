package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// AuditPublisherMock stands in for the rabbitmq audit publisher. Events
// passed to Publish are additionally captured for envelope assertions.
type AuditPublisherMock struct {
	mock.Mock

	Published []any
}

func (m *AuditPublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	m.Published = append(m.Published, event)
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *AuditPublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
