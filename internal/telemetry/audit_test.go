package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/mocks"
	"messenger-service/internal/telemetry"
)

var _ telemetry.Publisher = (*mocks.AuditPublisherMock)(nil)

func TestEmitShipsEnvelope(t *testing.T) {
	publisher := new(mocks.AuditPublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit_log.messenger", "messenger-service", "test")

	publisher.On("Publish", mock.Anything, "audit_log.messenger", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(telemetry.AuditEnvelope)
		return ok &&
			envelope.SchemaVersion == 1 &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "messenger-service" &&
			envelope.Environment == "test" &&
			envelope.RequestID == "req-1" &&
			envelope.UserID == "alice" &&
			envelope.Payload.Level == "INFO" &&
			envelope.Payload.Text == "message sent" &&
			envelope.OccurredAt != ""
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "message sent", "req-1", "alice")
	publisher.AssertExpectations(t)
}

func TestEmitNilReceiverIsNoOp(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	emitter.Emit(context.Background(), "INFO", "dropped", "req-2", "")

	// A publisher-less emitter is equally quiet.
	telemetry.NewAuditEmitter(nil, "audit_log.messenger", "messenger-service", "test").
		Emit(context.Background(), "INFO", "dropped", "req-3", "")
}
