package stock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

func TestReserveDecrementsAndRecordsMovement(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "SKU-1", "10")
	ledger := NewLedger(db)
	ctx := context.Background()
	orderID := uuid.New()

	balance, err := ledger.Reserve(ctx, product.ID, dbtest.D("4"), Reference{Type: "sales_order", ID: orderID})
	require.NoError(t, err)
	assert.True(t, balance.Equal(dbtest.D("6")), balance.String())
	assert.True(t, dbtest.ProductStock(t, db, product.ID).Equal(dbtest.D("6")))

	movements, err := ledger.Movements(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, enums.StockMovementReservation, movements[0].Reason)
	assert.True(t, movements[0].Quantity.Equal(dbtest.D("-4")))
	assert.True(t, movements[0].BalanceAfter.Equal(dbtest.D("6")))
	require.NotNil(t, movements[0].ReferenceID)
	assert.Equal(t, orderID, *movements[0].ReferenceID)
}

func TestReserveInsufficientLeavesStockUntouched(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "SKU-1", "3")
	ledger := NewLedger(db)

	_, err := ledger.Reserve(context.Background(), product.ID, dbtest.D("4"), Reference{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	assert.True(t, dbtest.ProductStock(t, db, product.ID).Equal(dbtest.D("3")))

	movements, err := ledger.Movements(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestReserveExactStockReachesZero(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "SKU-1", "10")

	balance, err := NewLedger(db).Reserve(context.Background(), product.ID, dbtest.D("10"), Reference{})
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestReserveValidationAndNotFound(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "SKU-1", "3")
	ledger := NewLedger(db)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, product.ID, dbtest.D("0"), Reference{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = ledger.Reserve(ctx, uuid.New(), dbtest.D("1"), Reference{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.False(t, errors.Is(err, ErrInsufficientStock))
}

func TestRestockIncrements(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "SKU-1", "0")
	ledger := NewLedger(db)
	ctx := context.Background()

	balance, err := ledger.Restock(ctx, product.ID, dbtest.D("7.5"), Reference{Type: "manual"})
	require.NoError(t, err)
	assert.True(t, balance.Equal(dbtest.D("7.5")))

	_, err = ledger.Restock(ctx, uuid.New(), dbtest.D("1"), Reference{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = ledger.Restock(ctx, product.ID, dbtest.D("-1"), Reference{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCurrentStocks(t *testing.T) {
	db := dbtest.Open(t)
	a := dbtest.SeedProduct(t, db, "SKU-A", "2")
	b := dbtest.SeedProduct(t, db, "SKU-B", "9")
	ledger := NewLedger(db)
	ctx := context.Background()

	levels, err := ledger.CurrentStocks(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.True(t, levels[a.ID].Equal(dbtest.D("2")))
	assert.True(t, levels[b.ID].Equal(dbtest.D("9")))

	level, err := ledger.CurrentStock(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, level.Equal(dbtest.D("9")))

	_, err = ledger.CurrentStock(ctx, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestReserveBoundToTransactionRollsBack(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "SKU-1", "5")
	ledger := NewLedger(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := ledger.WithTx(tx).Reserve(context.Background(), product.ID, dbtest.D("5"), Reference{}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.True(t, dbtest.ProductStock(t, db, product.ID).Equal(dbtest.D("5")))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "SKU-1", "10")
	ledger := NewLedger(db)

	var won, lost atomic.Int32
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := ledger.Reserve(context.Background(), product.ID, dbtest.D("10"), Reference{})
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, int32(1), lost.Load())
	assert.True(t, dbtest.ProductStock(t, db, product.ID).IsZero())
}

func TestManySmallReservationsDrainExactly(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "SKU-1", "5")
	ledger := NewLedger(db)

	var won atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := ledger.Reserve(context.Background(), product.ID, dbtest.D("1"), Reference{})
			if err == nil {
				won.Add(1)
				return nil
			}
			if errors.Is(err, ErrInsufficientStock) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(5), won.Load())
	assert.True(t, dbtest.ProductStock(t, db, product.ID).IsZero())
}
