package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// StockMovement is an append-only audit row for every stock change.
// Quantity is signed: reservations are negative, restocks positive.
type StockMovement struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID     uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index:idx_stock_movements_product" json:"productId"`
	Quantity      decimal.Decimal           `gorm:"column:quantity;type:numeric(18,4);not null" json:"quantity"`
	BalanceAfter  decimal.Decimal           `gorm:"column:balance_after;type:numeric(18,4);not null" json:"balanceAfter"`
	Reason        enums.StockMovementReason `gorm:"column:reason;type:text;not null" json:"reason"`
	ReferenceType string                    `gorm:"column:reference_type;type:text" json:"referenceType,omitempty"`
	ReferenceID   *uuid.UUID                `gorm:"column:reference_id;type:uuid" json:"referenceId,omitempty"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
