package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType is the aggregate_type_enum column: the entity whose
// id keys the event stream.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateCart  OutboxAggregateType = "cart"
)

// OutboxEventType is the event_type_enum column.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order_created"
	EventOrderPaid      OutboxEventType = "order_paid"
	EventOrderCancelled OutboxEventType = "order_cancelled"
	EventCartMerged     OutboxEventType = "cart_merged"
)

// eventAggregates pins every event type to the only aggregate it may carry.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderCreated:   AggregateOrder,
	EventOrderPaid:      AggregateOrder,
	EventOrderCancelled: AggregateOrder,
	EventCartMerged:     AggregateCart,
}

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder || a == AggregateCart
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e belongs to, or "" when e is unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason explains why a row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return slices.Contains([]OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}, r)
}
