package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// AuditPublisherMock stands in for the AMQP publisher behind the audit
// emitter so tests can assert on the emitted envelope.
type AuditPublisherMock struct {
	mock.Mock
}

func (m *AuditPublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *AuditPublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
