package enums

import "fmt"

// OutboxAggregateType identifies the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateSubmission OutboxAggregateType = "submission"
	AggregateShop       OutboxAggregateType = "shop"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSubmission,
	AggregateShop,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the domain event stored in outbox_events.event_type.
type OutboxEventType string

const (
	EventSubmissionResolved   OutboxEventType = "submission_resolved"
	EventSubmissionReconciled OutboxEventType = "submission_reconciled"
	EventShopUninstalled      OutboxEventType = "shop_uninstalled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSubmissionResolved,
	EventSubmissionReconciled,
	EventShopUninstalled,
}

// IsValid reports whether the value matches a known event type.
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
	return "", fmt.Errorf("invalid event type %q", value)
}
