package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event refers to.
type OutboxAggregateType string

const (
	AggregateDocument OutboxAggregateType = "document"
)

// OutboxEventType names the events written to outbox_events.
type OutboxEventType string

const (
	EventDocumentFinalized OutboxEventType = "document_finalized"
	EventPaymentRecorded   OutboxEventType = "payment_recorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDocumentFinalized,
	EventPaymentRecorded,
}

// String implements fmt.Stringer.
func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known OutboxEventType.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
