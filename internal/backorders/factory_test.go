package backorders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/allocation"
	"github.com/angelmondragon/fulfillment-backend/internal/dbtest"
	"github.com/angelmondragon/fulfillment-backend/internal/numbering"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

var fixedDate = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newFactory(t *testing.T, repo Repository, db *gorm.DB, observer CompensationObserver) Factory {
	t.Helper()
	gen, err := numbering.NewGenerator(numbering.NewDBSequencer(db))
	require.NoError(t, err)
	f, err := NewFactory(FactoryParams{
		Repository: repo,
		Numberer:   gen,
		Observer:   observer,
		Now:        func() time.Time { return fixedDate },
	})
	require.NoError(t, err)
	return f
}

func alloc(lineID uuid.UUID, qty, price string) allocation.Allocation {
	return allocation.Allocation{
		LineID:    lineID,
		ProductID: uuid.New(),
		Ordered:   dbtest.D("10"),
		Quantity:  dbtest.D(qty),
		UnitPrice: dbtest.D(price),
	}
}

func TestCreatePendingBackorder(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	f := newFactory(t, repo, db, nil)
	salesOrderID := uuid.New()

	backorder, err := f.Create(context.Background(), Header{SalesOrderID: salesOrderID, CustomerID: uuid.New(), Date: fixedDate},
		[]allocation.Allocation{alloc(uuid.New(), "6", "2.50")})
	require.NoError(t, err)

	assert.Equal(t, "BO-260301-0001", backorder.BackorderNumber)
	assert.Equal(t, enums.BackorderStatusPending, backorder.Status)
	assert.True(t, backorder.TotalAmount.Equal(dbtest.D("15")))
	require.Len(t, backorder.Items, 1)
	assert.True(t, backorder.Items[0].FulfilledQuantity.IsZero())
	assert.True(t, backorder.Items[0].BackorderedQuantity.Equal(dbtest.D("6")))

	list, err := repo.ListBySalesOrder(context.Background(), salesOrderID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 1)
}

func TestCreateNumbersByIssueDayNotBackorderDate(t *testing.T) {
	db := dbtest.Open(t)
	f := newFactory(t, NewRepository(db), db, nil)
	backdated := time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)

	backorder, err := f.Create(context.Background(), Header{SalesOrderID: uuid.New(), CustomerID: uuid.New(), Date: backdated},
		[]allocation.Allocation{alloc(uuid.New(), "1", "1")})
	require.NoError(t, err)

	assert.Equal(t, "BO-260301-0001", backorder.BackorderNumber)
	assert.True(t, backorder.BackorderDate.Equal(backdated))
}

func TestCreateRejectsEmptyAllocations(t *testing.T) {
	db := dbtest.Open(t)
	f := newFactory(t, NewRepository(db), db, nil)

	_, err := f.Create(context.Background(), Header{SalesOrderID: uuid.New()}, []allocation.Allocation{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Backorder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateCompensationFailureIsReported(t *testing.T) {
	db := dbtest.Open(t)
	repo := &failingRepo{Repository: NewRepository(db), itemsErr: errors.New("lines rejected"), deleteErr: errors.New("still down")}
	observer := &countingObserver{}
	f := newFactory(t, repo, db, observer)

	_, err := f.Create(context.Background(), Header{SalesOrderID: uuid.New()}, []allocation.Allocation{alloc(uuid.New(), "1", "1")})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.True(t, strings.Contains(err.Error(), "lines rejected"))
	assert.True(t, strings.Contains(err.Error(), "still down"))
	assert.Equal(t, 1, observer.calls)
}

func TestCreateCompensatesWhenLinesFail(t *testing.T) {
	db := dbtest.Open(t)
	repo := &failingRepo{Repository: NewRepository(db), itemsErr: errors.New("lines rejected")}
	f := newFactory(t, repo, db, nil)

	_, err := f.Create(context.Background(), Header{SalesOrderID: uuid.New()}, []allocation.Allocation{alloc(uuid.New(), "1", "1")})
	require.Error(t, err)

	var live, all int64
	require.NoError(t, db.Model(&models.Backorder{}).Count(&live).Error)
	require.NoError(t, db.Unscoped().Model(&models.Backorder{}).Count(&all).Error)
	assert.Zero(t, live)
	assert.Equal(t, int64(1), all)
}

func TestOpenQuantitiesIgnoresClosedAndDeleted(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	f := newFactory(t, repo, db, nil)
	ctx := context.Background()
	salesOrderID := uuid.New()
	lineA, lineB := uuid.New(), uuid.New()
	header := Header{SalesOrderID: salesOrderID, CustomerID: uuid.New(), Date: fixedDate}

	open, err := f.Create(ctx, header, []allocation.Allocation{alloc(lineA, "6", "1"), alloc(lineB, "2", "1")})
	require.NoError(t, err)
	cancelled, err := f.Create(ctx, header, []allocation.Allocation{alloc(lineA, "3", "1")})
	require.NoError(t, err)
	deleted, err := f.Create(ctx, header, []allocation.Allocation{alloc(lineB, "5", "1")})
	require.NoError(t, err)
	_, err = f.Create(ctx, Header{SalesOrderID: uuid.New(), Date: fixedDate}, []allocation.Allocation{alloc(lineA, "9", "1")})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, cancelled.ID, enums.BackorderStatusCancelled))
	require.NoError(t, repo.SoftDelete(ctx, deleted.ID))
	require.NoError(t, repo.IncrementFulfilled(ctx, open.Items[0].ID, dbtest.D("2")))

	quantities, err := repo.OpenQuantities(ctx, salesOrderID)
	require.NoError(t, err)
	require.Len(t, quantities, 2)
	assert.True(t, quantities[lineA].Equal(dbtest.D("4")), quantities[lineA].String())
	assert.True(t, quantities[lineB].Equal(dbtest.D("2")), quantities[lineB].String())
}

func TestIncrementFulfilledIsGuarded(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	f := newFactory(t, repo, db, nil)
	ctx := context.Background()

	backorder, err := f.Create(ctx, Header{SalesOrderID: uuid.New(), Date: fixedDate}, []allocation.Allocation{alloc(uuid.New(), "3", "1")})
	require.NoError(t, err)
	itemID := backorder.Items[0].ID

	require.NoError(t, repo.IncrementFulfilled(ctx, itemID, dbtest.D("3")))
	assert.True(t, errors.Is(repo.IncrementFulfilled(ctx, itemID, dbtest.D("0.5")), ErrFulfilledExceedsBackordered))

	loaded, err := repo.FindByID(ctx, backorder.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Items[0].Remaining().IsZero())
}

func TestUpdateStatusMissingBackorder(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	err := repo.UpdateStatus(context.Background(), uuid.New(), enums.BackorderStatusFulfilled)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

type failingRepo struct {
	Repository
	itemsErr  error
	deleteErr error
}

func (r *failingRepo) WithTx(tx *gorm.DB) Repository {
	return &failingRepo{Repository: r.Repository.WithTx(tx), itemsErr: r.itemsErr, deleteErr: r.deleteErr}
}

func (r *failingRepo) CreateItems(ctx context.Context, items []models.BackorderItem) error {
	if r.itemsErr != nil {
		return r.itemsErr
	}
	return r.Repository.CreateItems(ctx, items)
}

func (r *failingRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.Repository.SoftDelete(ctx, id)
}

type countingObserver struct {
	calls int
}

func (o *countingObserver) CompensationFailed(string) {
	o.calls++
}

func TestListOpenByProductOldestFirst(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	f := newFactory(t, repo, db, nil)
	ctx := context.Background()
	productID := uuid.New()
	forProduct := func(qty string) []allocation.Allocation {
		a := alloc(uuid.New(), qty, "1")
		a.ProductID = productID
		return []allocation.Allocation{a}
	}

	first, err := f.Create(ctx, Header{SalesOrderID: uuid.New(), Date: fixedDate}, forProduct("2"))
	require.NoError(t, err)
	second, err := f.Create(ctx, Header{SalesOrderID: uuid.New(), Date: fixedDate.Add(time.Hour)}, forProduct("4"))
	require.NoError(t, err)
	done, err := f.Create(ctx, Header{SalesOrderID: uuid.New(), Date: fixedDate}, forProduct("1"))
	require.NoError(t, err)
	cancelled, err := f.Create(ctx, Header{SalesOrderID: uuid.New(), Date: fixedDate}, forProduct("1"))
	require.NoError(t, err)
	_, err = f.Create(ctx, Header{SalesOrderID: uuid.New(), Date: fixedDate}, []allocation.Allocation{alloc(uuid.New(), "7", "1")})
	require.NoError(t, err)

	require.NoError(t, repo.IncrementFulfilled(ctx, done.Items[0].ID, dbtest.D("1")))
	require.NoError(t, repo.UpdateStatus(ctx, cancelled.ID, enums.BackorderStatusCancelled))

	ids, err := repo.ListOpenByProduct(ctx, productID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, ids)

	limited, err := repo.ListOpenByProduct(ctx, productID, 1)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID}, limited)
}
