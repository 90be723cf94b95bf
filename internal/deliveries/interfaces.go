package deliveries

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// Repository persists delivery orders. Every read skips soft-deleted rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateHeader(ctx context.Context, order *models.DeliveryOrder) error
	CreateItems(ctx context.Context, items []models.DeliveryOrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error)
	ListBySalesOrder(ctx context.Context, salesOrderID uuid.UUID) ([]models.DeliveryOrder, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// CompensationObserver is told when a compensating soft delete fails.
type CompensationObserver interface {
	CompensationFailed(document string)
}
