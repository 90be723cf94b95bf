package backorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

const headerSavepoint = "backorder_header"

type repository struct {
	db   *gorm.DB
	inTx bool
}

// NewRepository builds a backorder repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, inTx: true}
}

func (r *repository) CreateHeader(ctx context.Context, backorder *models.Backorder) error {
	items := backorder.Items
	backorder.Items = nil
	defer func() { backorder.Items = items }()

	if !r.inTx {
		return r.db.WithContext(ctx).Create(backorder).Error
	}

	tx := r.db.WithContext(ctx)
	if err := tx.SavePoint(headerSavepoint).Error; err != nil {
		return err
	}
	if err := tx.Create(backorder).Error; err != nil {
		if rbErr := tx.RollbackTo(headerSavepoint).Error; rbErr != nil {
			return rbErr
		}
		return err
	}
	return nil
}

func (r *repository) CreateItems(ctx context.Context, items []models.BackorderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Backorder, error) {
	var backorder models.Backorder
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		First(&backorder).Error
	if err != nil {
		return nil, err
	}
	return &backorder, nil
}

func (r *repository) ListBySalesOrder(ctx context.Context, salesOrderID uuid.UUID) ([]models.Backorder, error) {
	var backorders []models.Backorder
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("sales_order_id = ?", salesOrderID).
		Order("created_at ASC").
		Order("backorder_number ASC").
		Find(&backorders).Error
	if err != nil {
		return nil, err
	}
	return backorders, nil
}

type openRow struct {
	SalesOrderItemID uuid.UUID
	OpenQuantity     decimal.Decimal
}

// OpenQuantities sums backordered minus fulfilled per sales order line over
// pending, non-deleted backorders.
func (r *repository) OpenQuantities(ctx context.Context, salesOrderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []openRow
	err := r.db.WithContext(ctx).
		Table("backorder_items AS bi").
		Select("bi.sales_order_item_id AS sales_order_item_id, SUM(bi.backordered_quantity - bi.fulfilled_quantity) AS open_quantity").
		Joins("JOIN backorders AS b ON b.id = bi.backorder_id").
		Where("b.sales_order_id = ?", salesOrderID).
		Where("b.status = ?", enums.BackorderStatusPending).
		Where("b.deleted_at IS NULL AND bi.deleted_at IS NULL").
		Group("bi.sales_order_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	open := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		if row.OpenQuantity.IsPositive() {
			open[row.SalesOrderItemID] = row.OpenQuantity
		}
	}
	return open, nil
}

// ListOpenByProduct returns pending backorders still waiting on productID,
// oldest first.
func (r *repository) ListOpenByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Table("backorders AS b").
		Select("b.id").
		Joins("JOIN backorder_items AS bi ON bi.backorder_id = b.id").
		Where("bi.product_id = ?", productID).
		Where("b.status = ?", enums.BackorderStatusPending).
		Where("b.deleted_at IS NULL AND bi.deleted_at IS NULL").
		Where("bi.fulfilled_quantity < bi.backordered_quantity").
		Group("b.id, b.backorder_date, b.backorder_number").
		Order("b.backorder_date ASC").
		Order("b.backorder_number ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var ids []uuid.UUID
	if err := query.Pluck("b.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) IncrementFulfilled(ctx context.Context, itemID uuid.UUID, qty decimal.Decimal) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE backorder_items
		SET fulfilled_quantity = fulfilled_quantity + ?,
			updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND fulfilled_quantity + ? <= backordered_quantity
	`, qty, time.Now().UTC(), itemID, qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFulfilledExceedsBackordered
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BackorderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Backorder{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDelete tombstones the header and its items.
func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("backorder_id = ?", id).Delete(&models.BackorderItem{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&models.Backorder{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
