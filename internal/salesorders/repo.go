package salesorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sales order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate row-locks the order header for the rest of the
// transaction. SQLite ignores the clause and serialises writers instead.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repository) find(query *gorm.DB, id uuid.UUID) (*models.SalesOrder, error) {
	var order models.SalesOrder
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindItems(ctx context.Context, salesOrderID uuid.UUID) ([]models.SalesOrderItem, error) {
	var items []models.SalesOrderItem
	err := r.db.WithContext(ctx).
		Where("sales_order_id = ?", salesOrderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) IncrementDelivered(ctx context.Context, itemID uuid.UUID, qty decimal.Decimal) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE sales_order_items
		SET delivered_quantity = delivered_quantity + ?,
			updated_at = ?
		WHERE id = ? AND delivered_quantity + ? <= quantity
	`, qty, time.Now().UTC(), itemID, qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveredExceedsOrdered
	}
	return nil
}

func (r *repository) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status enums.SalesOrderDeliveryStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.SalesOrder{}).
		Where("id = ?", id).
		Update("delivery_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
