package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a stockable item. Stock is the on-hand quantity and never goes
// negative.
type Product struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SKU       string          `gorm:"column:sku;not null;uniqueIndex:idx_products_sku" json:"sku"`
	Name      string          `gorm:"column:name;not null" json:"name"`
	Stock     decimal.Decimal `gorm:"column:stock;type:numeric(18,4);not null;default:0;check:chk_products_stock_non_negative,stock >= 0" json:"stock"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
