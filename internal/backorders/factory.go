// Package backorders persists backorders for quantity that could not ship,
// and tracks how much of each has since been fulfilled.
package backorders

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
	documentName          = "backorder"
)

// Header carries the caller-supplied fields of a new backorder.
type Header struct {
	SalesOrderID uuid.UUID
	CustomerID   uuid.UUID
	Date         time.Time
	Notes        *string
	CreatedBy    *string
}

// Factory creates pending backorders. It never persists one without lines.
type Factory interface {
	WithTx(tx *gorm.DB) Factory
	Create(ctx context.Context, header Header, allocs []allocation.Allocation) (*models.Backorder, error)
}

// FactoryParams wires a backorder factory.
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
		return nil, fmt.Errorf("backorder repository required")
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

func (f *factory) Create(ctx context.Context, header Header, allocs []allocation.Allocation) (*models.Backorder, error) {
	if len(allocs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backorder requires at least one line")
	}
	if header.Date.IsZero() {
		header.Date = f.now().UTC()
	}

	backorder := &models.Backorder{
		SalesOrderID:  header.SalesOrderID,
		CustomerID:    header.CustomerID,
		BackorderDate: header.Date,
		Status:        enums.BackorderStatusPending,
		TotalAmount:   allocation.TotalAmount(allocs),
		Notes:         header.Notes,
		CreatedBy:     header.CreatedBy,
	}

	if err := f.createHeader(ctx, backorder); err != nil {
		return nil, err
	}

	items := make([]models.BackorderItem, 0, len(allocs))
	for _, alloc := range allocs {
		if !alloc.Quantity.IsPositive() {
			return nil, f.abort(ctx, backorder, pkgerrors.New(pkgerrors.CodeValidation, "backorder line quantity must be positive"))
		}
		items = append(items, models.BackorderItem{
			BackorderID:         backorder.ID,
			SalesOrderItemID:    alloc.LineID,
			ProductID:           alloc.ProductID,
			OrderedQuantity:     alloc.Ordered,
			BackorderedQuantity: alloc.Quantity,
			UnitPrice:           alloc.UnitPrice,
			TotalAmount:         alloc.Amount(),
		})
	}

	if err := f.repo.CreateItems(ctx, items); err != nil {
		return nil, f.abort(ctx, backorder, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist backorder lines"))
	}

	backorder.Items = items
	return backorder, nil
}

func (f *factory) createHeader(ctx context.Context, backorder *models.Backorder) error {
	// The number carries the day the document is issued, not its
	// caller-supplied date.
	issued := f.now()
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		number, err := f.numberer.Generate(ctx, numbering.PrefixBackorder, issued)
		if err != nil {
			return err
		}
		backorder.BackorderNumber = number

		err = f.repo.CreateHeader(ctx, backorder)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist backorder")
		}
		lastErr = err
		f.logg.Warn(f.logg.WithFields(ctx, map[string]any{
			"backorder_number": number,
			"attempt":          attempt,
		}), "backorder.number_collision")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, "allocate unique backorder number")
}

func (f *factory) abort(ctx context.Context, backorder *models.Backorder, cause error) error {
	if f.inTx {
		return cause
	}
	compErr := f.repo.SoftDelete(ctx, backorder.ID)
	if compErr == nil {
		return cause
	}

	if f.observer != nil {
		f.observer.CompensationFailed(documentName)
	}
	logCtx := f.logg.WithFields(ctx, map[string]any{
		"backorder_id":     backorder.ID.String(),
		"backorder_number": backorder.BackorderNumber,
		"sales_order_id":   backorder.SalesOrderID.String(),
	})
	f.logg.Error(logCtx, "backorder.orphaned_header", compErr)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, multierr.Append(cause, compErr), "persist backorder lines")
}
