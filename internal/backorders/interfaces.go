package backorders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// ErrFulfilledExceedsBackordered is returned when an increment would ship
// more than a backorder line is waiting for.
var ErrFulfilledExceedsBackordered = errors.New("fulfilled quantity would exceed backordered quantity")

// Repository persists backorders. Every read skips soft-deleted rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateHeader(ctx context.Context, backorder *models.Backorder) error
	CreateItems(ctx context.Context, items []models.BackorderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Backorder, error)
	ListBySalesOrder(ctx context.Context, salesOrderID uuid.UUID) ([]models.Backorder, error)
	OpenQuantities(ctx context.Context, salesOrderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	ListOpenByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]uuid.UUID, error)
	IncrementFulfilled(ctx context.Context, itemID uuid.UUID, qty decimal.Decimal) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BackorderStatus) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// CompensationObserver is told when a compensating soft delete fails.
type CompensationObserver interface {
	CompensationFailed(document string)
}
