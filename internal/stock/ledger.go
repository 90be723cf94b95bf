// Package stock owns per-product on-hand quantity. Every change goes through
// a guarded UPDATE so concurrent reservations can never drive stock negative.
package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

// ErrInsufficientStock is returned (wrapped as CONFLICT) when a reservation
// asks for more than is on hand. Nothing is decremented in that case.
var ErrInsufficientStock = errors.New("insufficient stock")

// Reference ties a stock movement to the document that caused it.
type Reference struct {
	Type string
	ID   uuid.UUID
}

// Ledger is the only writer of products.stock.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Reserve(ctx context.Context, productID uuid.UUID, qty decimal.Decimal, ref Reference) (decimal.Decimal, error)
	Restock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal, ref Reference) (decimal.Decimal, error)
	CurrentStock(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
	CurrentStocks(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	Movements(ctx context.Context, productID uuid.UUID) ([]models.StockMovement, error)
}

type ledger struct {
	db    *gorm.DB
	bound bool
	now   func() time.Time
}

// NewLedger returns a ledger that opens its own transaction per change.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db, now: time.Now}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx, bound: true, now: l.now}
}

func (l *ledger) Reserve(ctx context.Context, productID uuid.UUID, qty decimal.Decimal, ref Reference) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}

	var balance decimal.Decimal
	err := l.run(ctx, func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE products
			SET stock = stock - ?,
				updated_at = ?
			WHERE id = ? AND stock >= ?
		`, qty, l.now().UTC(), productID, qty)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			if err := ensureProduct(tx, productID); err != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrInsufficientStock, "insufficient stock for product").
				WithDetails(map[string]any{"productId": productID, "requested": qty})
		}

		var err error
		balance, err = l.record(tx, productID, qty.Neg(), enums.StockMovementReservation, ref)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (l *ledger) Restock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal, ref Reference) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}

	var balance decimal.Decimal
	err := l.run(ctx, func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE products
			SET stock = stock + ?,
				updated_at = ?
			WHERE id = ?
		`, qty, l.now().UTC(), productID)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock product")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		var err error
		balance, err = l.record(tx, productID, qty, enums.StockMovementRestock, ref)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (l *ledger) CurrentStock(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var product models.Product
	err := l.db.WithContext(ctx).Select("id", "stock").First(&product, "id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	return product.Stock, nil
}

// CurrentStocks returns stock for every known product among productIDs.
// Unknown ids are absent from the map.
func (l *ledger) CurrentStocks(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	levels := make(map[uuid.UUID]decimal.Decimal, len(productIDs))
	if len(productIDs) == 0 {
		return levels, nil
	}

	var products []models.Product
	if err := l.db.WithContext(ctx).
		Select("id", "stock").
		Where("id IN ?", productIDs).
		Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	for _, product := range products {
		levels[product.ID] = product.Stock
	}
	return levels, nil
}

func (l *ledger) Movements(ctx context.Context, productID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := l.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	return movements, nil
}

func (l *ledger) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if l.bound {
		return fn(l.db.WithContext(ctx))
	}
	return l.db.WithContext(ctx).Transaction(fn)
}

func (l *ledger) record(tx *gorm.DB, productID uuid.UUID, delta decimal.Decimal, reason enums.StockMovementReason, ref Reference) (decimal.Decimal, error) {
	var product models.Product
	if err := tx.Select("id", "stock").First(&product, "id = ?", productID).Error; err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock balance")
	}

	movement := &models.StockMovement{
		ProductID:     productID,
		Quantity:      delta,
		BalanceAfter:  product.Stock,
		Reason:        reason,
		ReferenceType: ref.Type,
	}
	if ref.ID != uuid.Nil {
		id := ref.ID
		movement.ReferenceID = &id
	}
	if err := tx.Create(movement).Error; err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
	}
	return product.Stock, nil
}

func ensureProduct(tx *gorm.DB, productID uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product")
	}
	if count == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}
