package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// DeliveryOrder records goods leaving the warehouse for a sales order.
type DeliveryOrder struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DeliveryNumber       string                    `gorm:"column:delivery_number;not null;uniqueIndex:idx_delivery_orders_number" json:"deliveryNumber"`
	SalesOrderID         uuid.UUID                 `gorm:"column:sales_order_id;type:uuid;not null;index:idx_delivery_orders_sales_order" json:"salesOrderId"`
	CustomerID           uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null" json:"customerId"`
	DeliveryDate         time.Time                 `gorm:"column:delivery_date;not null" json:"deliveryDate"`
	Status               enums.DeliveryOrderStatus `gorm:"column:status;type:text;not null" json:"status"`
	TotalDeliveredAmount decimal.Decimal           `gorm:"column:total_delivered_amount;type:numeric(18,4);not null;default:0" json:"totalDeliveredAmount"`
	Notes                *string                   `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy            *string                   `gorm:"column:created_by" json:"createdBy,omitempty"`
	Items                []DeliveryOrderItem       `gorm:"foreignKey:DeliveryOrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt            gorm.DeletedAt            `gorm:"column:deleted_at;index" json:"-"`
}

// DeliveryOrderItem is one shipped line of a delivery order.
type DeliveryOrderItem struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DeliveryOrderID   uuid.UUID           `gorm:"column:delivery_order_id;type:uuid;not null;index:idx_delivery_order_items_header" json:"deliveryOrderId"`
	SalesOrderItemID  uuid.UUID           `gorm:"column:sales_order_item_id;type:uuid;not null" json:"salesOrderItemId"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	OrderedQuantity   decimal.Decimal     `gorm:"column:ordered_quantity;type:numeric(18,4);not null" json:"orderedQuantity"`
	DeliveredQuantity decimal.Decimal     `gorm:"column:delivered_quantity;type:numeric(18,4);not null" json:"deliveredQuantity"`
	UnitPrice         decimal.Decimal     `gorm:"column:unit_price;type:numeric(18,4);not null" json:"unitPrice"`
	TotalAmount       decimal.Decimal     `gorm:"column:total_amount;type:numeric(18,4);not null" json:"totalAmount"`
	ConditionStatus   enums.ItemCondition `gorm:"column:condition_status;type:text;not null;default:'good'" json:"conditionStatus"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	DeletedAt         gorm.DeletedAt      `gorm:"column:deleted_at;index" json:"-"`
}
