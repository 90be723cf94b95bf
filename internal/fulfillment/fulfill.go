package fulfillment

import (
	"bytes"
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/internal/allocation"
	"github.com/angelmondragon/fulfillment-backend/internal/backorders"
	"github.com/angelmondragon/fulfillment-backend/internal/deliveries"
	"github.com/angelmondragon/fulfillment-backend/internal/salesorders"
	"github.com/angelmondragon/fulfillment-backend/internal/stock"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
)

const referenceSalesOrder = "sales_order"

// Fulfill ships whatever outstanding demand current stock covers and
// backorders the rest. Running it again on a fully planned order is a no-op.
func (s *service) Fulfill(ctx context.Context, salesOrderID uuid.UUID, meta RequestMeta) (*Result, error) {
	if salesOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sales order id required")
	}
	ctx = s.logg.WithSalesOrderID(s.requestContext(ctx, opFulfill, meta), salesOrderID.String())
	start := s.now()

	var result *Result
	err := s.locked(ctx, salesOrderID, func() error {
		return s.within(ctx, func(u unit) error {
			var err error
			result, err = s.fulfill(ctx, u, salesOrderID, meta)
			return err
		})
	})

	outcome := metrics.OutcomeSuccess
	if err == nil && result.DeliveryOrder == nil && result.Backorder == nil {
		outcome = metrics.OutcomeNoop
	}
	s.observe(ctx, opFulfill, outcome, start, err)
	if err != nil {
		return nil, err
	}
	s.logResult(ctx, "fulfillment.completed", result)
	return result, nil
}

func (s *service) fulfill(ctx context.Context, u unit, salesOrderID uuid.UUID, meta RequestMeta) (*Result, error) {
	order, err := s.loadOrder(ctx, u, salesOrderID)
	if err != nil {
		return nil, err
	}
	items, err := u.orders.FindItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales order lines")
	}
	open, err := u.backorders.OpenQuantities(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open backorder quantities")
	}

	lines := make([]allocation.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, allocation.Line{
			LineID:      item.ID,
			ProductID:   item.ProductID,
			Ordered:     item.Quantity,
			Delivered:   item.DeliveredQuantity,
			Backordered: open[item.ID],
			UnitPrice:   item.UnitPrice,
		})
	}
	levels, err := u.ledger.CurrentStocks(ctx, productIDs(lines))
	if err != nil {
		return nil, err
	}
	plan := allocation.Split(lines, levels)

	result := &Result{SalesOrderID: order.ID}
	var events []outbox.DomainEvent

	if !plan.IsEmpty() {
		reserved, demoted, err := s.reserve(ctx, u, &plan, stock.Reference{Type: referenceSalesOrder, ID: order.ID})
		if err != nil {
			return nil, err
		}
		result.DemotedLineIDs = demoted

		if len(plan.ToDeliver) > 0 {
			delivery, err := s.deliver(ctx, u, order, plan.ToDeliver, meta)
			if err != nil {
				if delivery == nil {
					s.release(ctx, u, reserved)
				}
				return nil, err
			}
			result.DeliveryOrder = delivery
			events = append(events, deliveryCreatedEvent(delivery, meta))
		}

		toBackorder, err := s.capToOutstanding(ctx, u, order.ID, plan.ToBackorder)
		if err != nil {
			return nil, err
		}
		if len(toBackorder) > 0 {
			backorder, err := u.backorderFactory.Create(ctx, backorders.Header{
				SalesOrderID: order.ID,
				CustomerID:   order.CustomerID,
				Date:         s.documentDate(meta),
				Notes:        meta.Notes,
				CreatedBy:    actorOf(meta),
			}, toBackorder)
			if err != nil {
				return nil, err
			}
			s.metrics.DocumentCreated("backorder")
			result.Backorder = backorder
			events = append(events, backorderCreatedEvent(backorder, meta))
		}
	}

	status, err := s.finalize(ctx, u, order, meta, events)
	if err != nil {
		return nil, err
	}
	result.DeliveryStatus = status
	return result, nil
}

// reserve takes stock for every deliver allocation. A lost race moves the
// line to the backorder set; any other failure aborts the run.
// Products are locked in id order so concurrent runs cannot deadlock.
func (s *service) reserve(ctx context.Context, u unit, plan *allocation.Plan, ref stock.Reference) ([]allocation.Allocation, []uuid.UUID, error) {
	pending := append([]allocation.Allocation(nil), plan.ToDeliver...)
	slices.SortStableFunc(pending, func(a, b allocation.Allocation) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})
	reserved := make([]allocation.Allocation, 0, len(pending))
	var demoted []uuid.UUID

	for _, alloc := range pending {
		_, err := u.ledger.Reserve(ctx, alloc.ProductID, alloc.Quantity, ref)
		if err == nil {
			reserved = append(reserved, alloc)
			continue
		}
		if !errors.Is(err, stock.ErrInsufficientStock) {
			s.release(ctx, u, reserved)
			return nil, nil, err
		}

		plan.Demote(alloc.LineID)
		demoted = append(demoted, alloc.LineID)
		s.metrics.ReservationDemoted()
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"sales_order_item_id": alloc.LineID.String(),
			"product_id":          alloc.ProductID.String(),
			"quantity":            alloc.Quantity.String(),
		}), "fulfillment.reservation_demoted")
	}
	return reserved, demoted, nil
}

// capToOutstanding trims backorder allocations to what is still outstanding
// after the deliver step. Without a run transaction another run on the same
// order may have shipped or backordered the quantity since planning.
func (s *service) capToOutstanding(ctx context.Context, u unit, orderID uuid.UUID, allocs []allocation.Allocation) ([]allocation.Allocation, error) {
	if u.tx != nil || len(allocs) == 0 {
		return allocs, nil
	}
	items, err := u.orders.FindItems(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload sales order lines")
	}
	open, err := u.backorders.OpenQuantities(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload open backorder quantities")
	}
	outstanding := make(map[uuid.UUID]decimal.Decimal, len(items))
	for _, item := range items {
		outstanding[item.ID] = item.Quantity.Sub(item.DeliveredQuantity).Sub(open[item.ID])
	}

	capped := make([]allocation.Allocation, 0, len(allocs))
	for _, alloc := range allocs {
		qty := decimal.Min(alloc.Quantity, outstanding[alloc.LineID])
		if !qty.Equal(alloc.Quantity) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"sales_order_item_id": alloc.LineID.String(),
				"planned":             alloc.Quantity.String(),
				"outstanding":         qty.String(),
			}), "fulfillment.backorder_capped")
		}
		if !qty.IsPositive() {
			continue
		}
		alloc.Quantity = qty
		capped = append(capped, alloc)
	}
	return capped, nil
}

// release returns reserved stock after a later step failed. Inside a
// transaction the rollback does this instead.
func (s *service) release(ctx context.Context, u unit, reserved []allocation.Allocation) {
	if u.tx != nil {
		return
	}
	for _, alloc := range reserved {
		ref := stock.Reference{Type: "reservation_release", ID: alloc.LineID}
		if _, err := u.ledger.Restock(ctx, alloc.ProductID, alloc.Quantity, ref); err != nil {
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"product_id": alloc.ProductID.String(),
				"quantity":   alloc.Quantity.String(),
			}), "fulfillment.reservation_release_failed", err)
		}
	}
}

// deliver persists the delivery order and advances the line counters. The
// order is returned alongside a counter error so callers know it exists.
func (s *service) deliver(ctx context.Context, u unit, order *models.SalesOrder, allocs []allocation.Allocation, meta RequestMeta) (*models.DeliveryOrder, error) {
	delivery, err := u.deliveryFactory.Create(ctx, deliveries.Header{
		SalesOrderID: order.ID,
		CustomerID:   order.CustomerID,
		Date:         s.documentDate(meta),
		Notes:        meta.Notes,
		CreatedBy:    actorOf(meta),
		Condition:    s.conditionFor(meta),
	}, allocs)
	if err != nil {
		return nil, err
	}
	s.metrics.DocumentCreated("delivery_order")

	for _, alloc := range allocs {
		if err := u.orders.IncrementDelivered(ctx, alloc.LineID, alloc.Quantity); err != nil {
			if errors.Is(err, salesorders.ErrDeliveredExceedsOrdered) {
				return delivery, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "sales order line already delivered").
					WithDetails(map[string]any{"salesOrderItemId": alloc.LineID})
			}
			return delivery, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivered quantity")
		}
	}
	return delivery, nil
}

// finalize re-projects the order status from the persisted lines and queues
// events together with the status write.
func (s *service) finalize(ctx context.Context, u unit, order *models.SalesOrder, meta RequestMeta, events []outbox.DomainEvent) (status enums.SalesOrderDeliveryStatus, err error) {
	status = order.DeliveryStatus
	err = s.inTx(ctx, u, func(u unit) error {
		items, err := u.orders.FindItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload sales order lines")
		}
		next := salesorders.ProjectDeliveryStatus(order.DeliveryStatus, items)
		if next != order.DeliveryStatus {
			if err := u.orders.UpdateDeliveryStatus(ctx, order.ID, next); err != nil {
				return translate(err, "sales order")
			}
			events = append(events, statusChangedEvent(order.ID, order.DeliveryStatus, next, meta))
		}
		status = next
		if len(events) == 0 {
			return nil
		}
		if err := s.outbox.EmitAll(ctx, u.tx, events); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue fulfillment events")
		}
		return nil
	})
	if err != nil {
		return order.DeliveryStatus, err
	}
	return status, nil
}

func (s *service) logResult(ctx context.Context, msg string, result *Result) {
	fields := map[string]any{
		"delivery_status": result.DeliveryStatus,
		"demoted_lines":   len(result.DemotedLineIDs),
	}
	if result.DeliveryOrder != nil {
		fields["delivery_number"] = result.DeliveryOrder.DeliveryNumber
	}
	if result.Backorder != nil {
		fields["backorder_number"] = result.Backorder.BackorderNumber
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}

func productIDs(lines []allocation.Line) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}
