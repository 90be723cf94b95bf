package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
)

func (s *service) GetDeliveryOrder(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery order id required")
	}
	delivery, err := s.deliveries.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "delivery order")
	}
	return delivery, nil
}

func (s *service) GetBackorder(ctx context.Context, id uuid.UUID) (*models.Backorder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backorder id required")
	}
	backorder, err := s.backorders.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "backorder")
	}
	return backorder, nil
}

func (s *service) ListDeliveryOrders(ctx context.Context, salesOrderID uuid.UUID) ([]models.DeliveryOrder, error) {
	if err := s.ensureSalesOrder(ctx, salesOrderID); err != nil {
		return nil, err
	}
	orders, err := s.deliveries.ListBySalesOrder(ctx, salesOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery orders")
	}
	return orders, nil
}

func (s *service) ListBackorders(ctx context.Context, salesOrderID uuid.UUID) ([]models.Backorder, error) {
	if err := s.ensureSalesOrder(ctx, salesOrderID); err != nil {
		return nil, err
	}
	list, err := s.backorders.ListBySalesOrder(ctx, salesOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list backorders")
	}
	return list, nil
}

func (s *service) ensureSalesOrder(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sales order id required")
	}
	if _, err := s.orders.FindByID(ctx, id); err != nil {
		return translate(err, "sales order")
	}
	return nil
}

// DeleteDeliveryOrder tombstones a delivery order and its lines. Stock and
// delivered counters are left as they are.
func (s *service) DeleteDeliveryOrder(ctx context.Context, id uuid.UUID, meta RequestMeta) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery order id required")
	}
	ctx = s.logg.WithField(s.requestContext(ctx, opDeleteDelivery, meta), "delivery_order_id", id.String())
	start := s.now()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.deliveries.WithTx(tx)
		delivery, err := repo.FindByID(ctx, id)
		if err != nil {
			return translate(err, "delivery order")
		}
		if err := repo.SoftDelete(ctx, id); err != nil {
			return translate(err, "delivery order")
		}
		event := documentDeletedEvent(enums.EventDeliveryOrderDeleted, enums.AggregateDeliveryOrder,
			delivery.ID, delivery.DeliveryNumber, delivery.SalesOrderID, s.now().UTC(), meta)
		return s.outbox.EmitAll(ctx, tx, []outbox.DomainEvent{event})
	})
	s.observe(ctx, opDeleteDelivery, metrics.OutcomeSuccess, start, err)
	if err != nil {
		return err
	}
	s.logg.Info(ctx, "fulfillment.delivery_order_deleted")
	return nil
}

// DeleteBackorder tombstones a backorder. Its open quantity becomes
// outstanding again.
func (s *service) DeleteBackorder(ctx context.Context, id uuid.UUID, meta RequestMeta) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "backorder id required")
	}
	ctx = s.logg.WithField(s.requestContext(ctx, opDeleteBackorder, meta), "backorder_id", id.String())
	start := s.now()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.backorders.WithTx(tx)
		backorder, err := repo.FindByID(ctx, id)
		if err != nil {
			return translate(err, "backorder")
		}
		if err := repo.SoftDelete(ctx, id); err != nil {
			return translate(err, "backorder")
		}
		event := documentDeletedEvent(enums.EventBackorderDeleted, enums.AggregateBackorder,
			backorder.ID, backorder.BackorderNumber, backorder.SalesOrderID, s.now().UTC(), meta)
		return s.outbox.EmitAll(ctx, tx, []outbox.DomainEvent{event})
	})
	s.observe(ctx, opDeleteBackorder, metrics.OutcomeSuccess, start, err)
	if err != nil {
		return err
	}
	s.logg.Info(ctx, "fulfillment.backorder_deleted")
	return nil
}
