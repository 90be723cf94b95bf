package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Backorder records quantity that could not ship for lack of stock.
type Backorder struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BackorderNumber string                `gorm:"column:backorder_number;not null;uniqueIndex:idx_backorders_number" json:"backorderNumber"`
	SalesOrderID    uuid.UUID             `gorm:"column:sales_order_id;type:uuid;not null;index:idx_backorders_sales_order" json:"salesOrderId"`
	CustomerID      uuid.UUID             `gorm:"column:customer_id;type:uuid;not null" json:"customerId"`
	BackorderDate   time.Time             `gorm:"column:backorder_date;not null" json:"backorderDate"`
	Status          enums.BackorderStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	TotalAmount     decimal.Decimal       `gorm:"column:total_amount;type:numeric(18,4);not null;default:0" json:"totalAmount"`
	Notes           *string               `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy       *string               `gorm:"column:created_by" json:"createdBy,omitempty"`
	Items           []BackorderItem       `gorm:"foreignKey:BackorderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt       gorm.DeletedAt        `gorm:"column:deleted_at;index" json:"-"`
}

// BackorderItem is one deferred line. FulfilledQuantity grows as later
// deliveries ship against the backorder.
type BackorderItem struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BackorderID         uuid.UUID       `gorm:"column:backorder_id;type:uuid;not null;index:idx_backorder_items_header" json:"backorderId"`
	SalesOrderItemID    uuid.UUID       `gorm:"column:sales_order_item_id;type:uuid;not null;index:idx_backorder_items_sales_order_item" json:"salesOrderItemId"`
	ProductID           uuid.UUID       `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	OrderedQuantity     decimal.Decimal `gorm:"column:ordered_quantity;type:numeric(18,4);not null" json:"orderedQuantity"`
	BackorderedQuantity decimal.Decimal `gorm:"column:backordered_quantity;type:numeric(18,4);not null" json:"backorderedQuantity"`
	FulfilledQuantity   decimal.Decimal `gorm:"column:fulfilled_quantity;type:numeric(18,4);not null;default:0;check:chk_backorder_items_fulfilled_bounds,fulfilled_quantity >= 0 AND fulfilled_quantity <= backordered_quantity" json:"fulfilledQuantity"`
	UnitPrice           decimal.Decimal `gorm:"column:unit_price;type:numeric(18,4);not null" json:"unitPrice"`
	TotalAmount         decimal.Decimal `gorm:"column:total_amount;type:numeric(18,4);not null" json:"totalAmount"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt           gorm.DeletedAt  `gorm:"column:deleted_at;index" json:"-"`
}

// Remaining is the quantity still waiting to ship.
func (i BackorderItem) Remaining() decimal.Decimal {
	return i.BackorderedQuantity.Sub(i.FulfilledQuantity)
}
