package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// SalesOrder is the customer order being fulfilled.
type SalesOrder struct {
	ID             uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber    string                         `gorm:"column:order_number;not null;uniqueIndex:idx_sales_orders_number" json:"orderNumber"`
	CustomerID     uuid.UUID                      `gorm:"column:customer_id;type:uuid;not null" json:"customerId"`
	DeliveryStatus enums.SalesOrderDeliveryStatus `gorm:"column:delivery_status;type:text;not null;default:'pending'" json:"deliveryStatus"`
	Items          []SalesOrderItem               `gorm:"foreignKey:SalesOrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt      time.Time                      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time                      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// SalesOrderItem is one ordered product line. DeliveredQuantity only grows
// and never exceeds Quantity.
type SalesOrderItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SalesOrderID      uuid.UUID       `gorm:"column:sales_order_id;type:uuid;not null;index:idx_sales_order_items_order" json:"salesOrderId"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	Quantity          decimal.Decimal `gorm:"column:quantity;type:numeric(18,4);not null;check:chk_sales_order_items_quantity_positive,quantity > 0" json:"quantity"`
	DeliveredQuantity decimal.Decimal `gorm:"column:delivered_quantity;type:numeric(18,4);not null;default:0;check:chk_sales_order_items_delivered_bounds,delivered_quantity >= 0 AND delivered_quantity <= quantity" json:"deliveredQuantity"`
	UnitPrice         decimal.Decimal `gorm:"column:unit_price;type:numeric(18,4);not null;default:0" json:"unitPrice"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
