package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// DocumentLine is one product line on a delivery order or backorder.
type DocumentLine struct {
	SalesOrderItemID uuid.UUID       `json:"sales_order_item_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
}

// DeliveryOrderCreatedEvent is emitted after stock was reserved and a
// delivery order persisted.
type DeliveryOrderCreatedEvent struct {
	DeliveryOrderID uuid.UUID           `json:"delivery_order_id"`
	Number          string              `json:"number"`
	SalesOrderID    uuid.UUID           `json:"sales_order_id"`
	CustomerID      uuid.UUID           `json:"customer_id"`
	Condition       enums.ItemCondition `json:"condition"`
	Total           decimal.Decimal     `json:"total"`
	Lines           []DocumentLine      `json:"lines"`
}

// BackorderCreatedEvent is emitted when demand could not be covered by stock.
type BackorderCreatedEvent struct {
	BackorderID  uuid.UUID       `json:"backorder_id"`
	Number       string          `json:"number"`
	SalesOrderID uuid.UUID       `json:"sales_order_id"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	Total        decimal.Decimal `json:"total"`
	Lines        []DocumentLine  `json:"lines"`
}

// BackorderFulfilledEvent links a fulfilled backorder to the delivery order
// that shipped it.
type BackorderFulfilledEvent struct {
	BackorderID     uuid.UUID `json:"backorder_id"`
	SalesOrderID    uuid.UUID `json:"sales_order_id"`
	DeliveryOrderID uuid.UUID `json:"delivery_order_id"`
}

// BackorderCancelledEvent releases the backordered quantity for re-planning.
type BackorderCancelledEvent struct {
	BackorderID  uuid.UUID `json:"backorder_id"`
	SalesOrderID uuid.UUID `json:"sales_order_id"`
	Reason       string    `json:"reason,omitempty"`
}

// DocumentDeletedEvent covers soft deletes of delivery orders and backorders.
type DocumentDeletedEvent struct {
	DocumentID   uuid.UUID `json:"document_id"`
	Number       string    `json:"number"`
	SalesOrderID uuid.UUID `json:"sales_order_id"`
	DeletedAt    time.Time `json:"deleted_at"`
}

// SalesOrderDeliveryStatusChangedEvent reports a projected status transition.
type SalesOrderDeliveryStatusChangedEvent struct {
	SalesOrderID   uuid.UUID                      `json:"sales_order_id"`
	PreviousStatus enums.SalesOrderDeliveryStatus `json:"previous_status"`
	Status         enums.SalesOrderDeliveryStatus `json:"status"`
}

// StockRestockedEvent announces new on-hand stock for a product. Inventory
// systems publish it as well, which lets the worker retry open backorders.
type StockRestockedEvent struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Balance   decimal.Decimal `json:"balance"`
}
