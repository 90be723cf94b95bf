// Package deliveries persists delivery orders for the deliver-now part of an
// allocation plan.
package deliveries

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/allocation"
	"github.com/angelmondragon/fulfillment-backend/internal/numbering"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

const (
	defaultNumberAttempts = 3
	documentName          = "delivery_order"
)

// Header carries the caller-supplied fields of a new delivery order.
type Header struct {
	SalesOrderID uuid.UUID
	CustomerID   uuid.UUID
	Date         time.Time
	Notes        *string
	CreatedBy    *string
	Condition    enums.ItemCondition
}

// Factory creates delivery orders. It never persists one without lines.
type Factory interface {
	WithTx(tx *gorm.DB) Factory
	Create(ctx context.Context, header Header, allocs []allocation.Allocation) (*models.DeliveryOrder, error)
}

// FactoryParams wires a delivery order factory.
type FactoryParams struct {
	Repository     Repository
	Numberer       numbering.Numberer
	Logger         *logger.Logger
	Observer       CompensationObserver
	NumberAttempts int
	// Now stamps the day in document numbers. Defaults to time.Now.
	Now func() time.Time
}

type factory struct {
	repo     Repository
	numberer numbering.Numberer
	logg     *logger.Logger
	observer CompensationObserver
	attempts int
	inTx     bool
	now      func() time.Time
}

// NewFactory validates dependencies and returns a factory.
func NewFactory(params FactoryParams) (Factory, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("delivery order repository required")
	}
	if params.Numberer == nil {
		return nil, fmt.Errorf("document numberer required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.NumberAttempts <= 0 {
		params.NumberAttempts = defaultNumberAttempts
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &factory{
		repo:     params.Repository,
		numberer: params.Numberer,
		logg:     params.Logger,
		observer: params.Observer,
		attempts: params.NumberAttempts,
		now:      params.Now,
	}, nil
}

func (f *factory) WithTx(tx *gorm.DB) Factory {
	if tx == nil {
		return f
	}
	clone := *f
	clone.repo = f.repo.WithTx(tx)
	clone.numberer = f.numberer.WithTx(tx)
	clone.inTx = true
	return &clone
}

func (f *factory) Create(ctx context.Context, header Header, allocs []allocation.Allocation) (*models.DeliveryOrder, error) {
	if len(allocs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery order requires at least one line")
	}
	if header.Date.IsZero() {
		header.Date = f.now().UTC()
	}
	condition := header.Condition
	if condition == "" {
		condition = enums.ItemConditionGood
	}
	if !condition.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid condition status %q", condition))
	}

	order := &models.DeliveryOrder{
		SalesOrderID:         header.SalesOrderID,
		CustomerID:           header.CustomerID,
		DeliveryDate:         header.Date,
		Status:               enums.DeliveryOrderStatusDelivered,
		TotalDeliveredAmount: allocation.TotalAmount(allocs),
		Notes:                header.Notes,
		CreatedBy:            header.CreatedBy,
	}

	if err := f.createHeader(ctx, order); err != nil {
		return nil, err
	}

	items := make([]models.DeliveryOrderItem, 0, len(allocs))
	for _, alloc := range allocs {
		if !alloc.Quantity.IsPositive() {
			return nil, f.abort(ctx, order, pkgerrors.New(pkgerrors.CodeValidation, "delivery line quantity must be positive"))
		}
		items = append(items, models.DeliveryOrderItem{
			DeliveryOrderID:   order.ID,
			SalesOrderItemID:  alloc.LineID,
			ProductID:         alloc.ProductID,
			OrderedQuantity:   alloc.Ordered,
			DeliveredQuantity: alloc.Quantity,
			UnitPrice:         alloc.UnitPrice,
			TotalAmount:       alloc.Amount(),
			ConditionStatus:   condition,
		})
	}

	if err := f.repo.CreateItems(ctx, items); err != nil {
		return nil, f.abort(ctx, order, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist delivery order lines"))
	}

	order.Items = items
	return order, nil
}

func (f *factory) createHeader(ctx context.Context, order *models.DeliveryOrder) error {
	// The number carries the day the document is issued, not its
	// caller-supplied date.
	issued := f.now()
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		number, err := f.numberer.Generate(ctx, numbering.PrefixDeliveryOrder, issued)
		if err != nil {
			return err
		}
		order.DeliveryNumber = number

		err = f.repo.CreateHeader(ctx, order)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist delivery order")
		}
		lastErr = err
		f.logg.Warn(f.logg.WithFields(ctx, map[string]any{
			"delivery_number": number,
			"attempt":         attempt,
		}), "delivery_order.number_collision")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, "allocate unique delivery number")
}

// abort soft-deletes a header whose lines could not be written. Inside a
// transaction the rollback removes it instead.
func (f *factory) abort(ctx context.Context, order *models.DeliveryOrder, cause error) error {
	if f.inTx {
		return cause
	}
	compErr := f.repo.SoftDelete(ctx, order.ID)
	if compErr == nil {
		return cause
	}

	if f.observer != nil {
		f.observer.CompensationFailed(documentName)
	}
	logCtx := f.logg.WithFields(ctx, map[string]any{
		"delivery_order_id": order.ID.String(),
		"delivery_number":   order.DeliveryNumber,
		"sales_order_id":    order.SalesOrderID.String(),
	})
	f.logg.Error(logCtx, "delivery_order.orphaned_header", compErr)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, multierr.Append(cause, compErr), "persist delivery order lines")
}
