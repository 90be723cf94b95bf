package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateSalesOrder    OutboxAggregateType = "sales_order"
	AggregateDeliveryOrder OutboxAggregateType = "delivery_order"
	AggregateBackorder     OutboxAggregateType = "backorder"
	AggregateProduct       OutboxAggregateType = "product"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSalesOrder,
	AggregateDeliveryOrder,
	AggregateBackorder,
	AggregateProduct,
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

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventDeliveryOrderCreated       OutboxEventType = "delivery_order_created"
	EventDeliveryOrderDeleted       OutboxEventType = "delivery_order_deleted"
	EventBackorderCreated           OutboxEventType = "backorder_created"
	EventBackorderFulfilled         OutboxEventType = "backorder_fulfilled"
	EventBackorderCancelled         OutboxEventType = "backorder_cancelled"
	EventBackorderDeleted           OutboxEventType = "backorder_deleted"
	EventSalesOrderDeliveryProgress OutboxEventType = "sales_order_delivery_status_changed"
	EventStockRestocked             OutboxEventType = "stock_restocked"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDeliveryOrderCreated,
	EventDeliveryOrderDeleted,
	EventBackorderCreated,
	EventBackorderFulfilled,
	EventBackorderCancelled,
	EventBackorderDeleted,
	EventSalesOrderDeliveryProgress,
	EventStockRestocked,
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
