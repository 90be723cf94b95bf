package deliveries

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

const headerSavepoint = "delivery_order_header"

type repository struct {
	db   *gorm.DB
	inTx bool
}

// NewRepository builds a delivery order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, inTx: true}
}

// CreateHeader inserts the header without its items. Inside a transaction
// the insert is wrapped in a savepoint so a duplicate number can be retried
// without aborting the outer transaction.
func (r *repository) CreateHeader(ctx context.Context, order *models.DeliveryOrder) error {
	items := order.Items
	order.Items = nil
	defer func() { order.Items = items }()

	if !r.inTx {
		return r.db.WithContext(ctx).Create(order).Error
	}

	tx := r.db.WithContext(ctx)
	if err := tx.SavePoint(headerSavepoint).Error; err != nil {
		return err
	}
	if err := tx.Create(order).Error; err != nil {
		if rbErr := tx.RollbackTo(headerSavepoint).Error; rbErr != nil {
			return rbErr
		}
		return err
	}
	return nil
}

func (r *repository) CreateItems(ctx context.Context, items []models.DeliveryOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error) {
	var order models.DeliveryOrder
	err := r.db.WithContext(ctx).
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

func (r *repository) ListBySalesOrder(ctx context.Context, salesOrderID uuid.UUID) ([]models.DeliveryOrder, error) {
	var orders []models.DeliveryOrder
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("sales_order_id = ?", salesOrderID).
		Order("created_at ASC").
		Order("delivery_number ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SoftDelete tombstones the header and its items.
func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("delivery_order_id = ?", id).Delete(&models.DeliveryOrderItem{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&models.DeliveryOrder{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
