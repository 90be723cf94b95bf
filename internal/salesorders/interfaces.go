package salesorders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// ErrDeliveredExceedsOrdered is returned when an increment would push a
// line's delivered quantity past its ordered quantity.
var ErrDeliveredExceedsOrdered = errors.New("delivered quantity would exceed ordered quantity")

// Repository reads sales orders and writes the two fields this service owns:
// line delivered quantities and the order delivery status.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error)
	FindItems(ctx context.Context, salesOrderID uuid.UUID) ([]models.SalesOrderItem, error)
	IncrementDelivered(ctx context.Context, itemID uuid.UUID, qty decimal.Decimal) error
	UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status enums.SalesOrderDeliveryStatus) error
}
