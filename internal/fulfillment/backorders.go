package fulfillment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fulfillment-backend/internal/allocation"
	"github.com/angelmondragon/fulfillment-backend/internal/backorders"
	"github.com/angelmondragon/fulfillment-backend/internal/stock"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
)

const referenceBackorder = "backorder"

// FulfillBackorder ships as much of a pending backorder as stock allows.
// The backorder moves to fulfilled once every line has shipped.
func (s *service) FulfillBackorder(ctx context.Context, backorderID uuid.UUID, meta RequestMeta) (*Result, error) {
	if backorderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backorder id required")
	}
	ctx = s.logg.WithField(s.requestContext(ctx, opFulfillBackorder, meta), "backorder_id", backorderID.String())
	start := s.now()

	peek, err := s.backorders.FindByID(ctx, backorderID)
	if err != nil {
		err = translate(err, "backorder")
		s.observe(ctx, opFulfillBackorder, metrics.OutcomeFailure, start, err)
		return nil, err
	}
	ctx = s.logg.WithSalesOrderID(ctx, peek.SalesOrderID.String())

	var result *Result
	err = s.locked(ctx, peek.SalesOrderID, func() error {
		return s.within(ctx, func(u unit) error {
			var err error
			result, err = s.fulfillBackorder(ctx, u, backorderID, peek.SalesOrderID, meta)
			return err
		})
	})

	outcome := metrics.OutcomeSuccess
	if err == nil && result.DeliveryOrder == nil {
		outcome = metrics.OutcomeNoop
	}
	s.observe(ctx, opFulfillBackorder, outcome, start, err)
	if err != nil {
		return nil, err
	}
	s.logResult(ctx, "fulfillment.backorder_completed", result)
	return result, nil
}

func (s *service) fulfillBackorder(ctx context.Context, u unit, backorderID, salesOrderID uuid.UUID, meta RequestMeta) (*Result, error) {
	order, err := s.loadOrder(ctx, u, salesOrderID)
	if err != nil {
		return nil, err
	}
	backorder, err := u.backorders.FindByID(ctx, backorderID)
	if err != nil {
		return nil, translate(err, "backorder")
	}

	result := &Result{SalesOrderID: order.ID, Backorder: backorder, DeliveryStatus: order.DeliveryStatus}
	switch backorder.Status {
	case enums.BackorderStatusFulfilled:
		return result, nil
	case enums.BackorderStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "backorder is cancelled")
	}

	// A backorder line is planned as its remaining quantity: delivered is set
	// so that Outstanding equals what the backorder still waits for.
	itemByLine := make(map[uuid.UUID]uuid.UUID, len(backorder.Items))
	lines := make([]allocation.Line, 0, len(backorder.Items))
	for _, item := range backorder.Items {
		remaining := item.Remaining()
		if !remaining.IsPositive() {
			continue
		}
		itemByLine[item.SalesOrderItemID] = item.ID
		lines = append(lines, allocation.Line{
			LineID:    item.SalesOrderItemID,
			ProductID: item.ProductID,
			Ordered:   item.OrderedQuantity,
			Delivered: item.OrderedQuantity.Sub(remaining),
			UnitPrice: item.UnitPrice,
		})
	}

	var events []outbox.DomainEvent
	if len(lines) > 0 {
		levels, err := u.ledger.CurrentStocks(ctx, productIDs(lines))
		if err != nil {
			return nil, err
		}
		plan := allocation.Split(lines, levels)
		// Whatever cannot ship stays on this backorder.
		plan.ToBackorder = nil

		reserved, demoted, err := s.reserve(ctx, u, &plan, stock.Reference{Type: referenceBackorder, ID: backorder.ID})
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
			for _, alloc := range plan.ToDeliver {
				if err := u.backorders.IncrementFulfilled(ctx, itemByLine[alloc.LineID], alloc.Quantity); err != nil {
					if errors.Is(err, backorders.ErrFulfilledExceedsBackordered) {
						return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "backorder line already fulfilled")
					}
					return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fulfilled quantity")
				}
			}
			result.DeliveryOrder = delivery
			events = append(events, deliveryCreatedEvent(delivery, meta))
		}
	}

	backorder, err = u.backorders.FindByID(ctx, backorderID)
	if err != nil {
		return nil, translate(err, "backorder")
	}
	if fullyFulfilled(backorder) {
		if err := u.backorders.UpdateStatus(ctx, backorder.ID, enums.BackorderStatusFulfilled); err != nil {
			return nil, translate(err, "backorder")
		}
		backorder.Status = enums.BackorderStatusFulfilled
		deliveryID := uuid.Nil
		if result.DeliveryOrder != nil {
			deliveryID = result.DeliveryOrder.ID
		}
		events = append(events, backorderFulfilledEvent(backorder, deliveryID, meta))
	}
	result.Backorder = backorder

	status, err := s.finalize(ctx, u, order, meta, events)
	if err != nil {
		return nil, err
	}
	result.DeliveryStatus = status
	return result, nil
}

func fullyFulfilled(backorder *models.Backorder) bool {
	for _, item := range backorder.Items {
		if item.Remaining().IsPositive() {
			return false
		}
	}
	return true
}

// FulfillPendingForProduct retries every pending backorder waiting on
// productID, oldest first. Busy or already closed backorders are skipped.
func (s *service) FulfillPendingForProduct(ctx context.Context, productID uuid.UUID, meta RequestMeta) ([]Result, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	ids, err := s.backorders.ListOpenByProduct(ctx, productID, restockBatchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open backorders")
	}

	var (
		results []Result
		errs    error
	)
	for _, id := range ids {
		result, err := s.FulfillBackorder(ctx, id, meta)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeLocked) || pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		if result.DeliveryOrder != nil {
			results = append(results, *result)
		}
	}
	return results, errs
}

// CancelBackorder closes a pending backorder. Its unshipped quantity becomes
// outstanding again and is picked up by the next Fulfill.
func (s *service) CancelBackorder(ctx context.Context, backorderID uuid.UUID, reason string, meta RequestMeta) (*models.Backorder, error) {
	if backorderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backorder id required")
	}
	ctx = s.logg.WithField(s.requestContext(ctx, opCancelBackorder, meta), "backorder_id", backorderID.String())
	start := s.now()

	peek, err := s.backorders.FindByID(ctx, backorderID)
	if err != nil {
		err = translate(err, "backorder")
		s.observe(ctx, opCancelBackorder, metrics.OutcomeFailure, start, err)
		return nil, err
	}

	var (
		backorder *models.Backorder
		changed   bool
	)
	err = s.locked(ctx, peek.SalesOrderID, func() error {
		return s.within(ctx, func(u unit) error {
			return s.inTx(ctx, u, func(u unit) error {
				var err error
				backorder, err = u.backorders.FindByID(ctx, backorderID)
				if err != nil {
					return translate(err, "backorder")
				}
				switch backorder.Status {
				case enums.BackorderStatusCancelled:
					return nil
				case enums.BackorderStatusFulfilled:
					return pkgerrors.New(pkgerrors.CodeStateConflict, "backorder already fulfilled")
				}
				if err := u.backorders.UpdateStatus(ctx, backorder.ID, enums.BackorderStatusCancelled); err != nil {
					return translate(err, "backorder")
				}
				backorder.Status = enums.BackorderStatusCancelled
				changed = true
				return s.outbox.EmitAll(ctx, u.tx, []outbox.DomainEvent{backorderCancelledEvent(backorder, reason, meta)})
			})
		})
	})

	outcome := metrics.OutcomeSuccess
	if !changed {
		outcome = metrics.OutcomeNoop
	}
	s.observe(ctx, opCancelBackorder, outcome, start, err)
	if err != nil {
		return nil, err
	}
	if changed {
		s.logg.Info(s.logg.WithField(ctx, "backorder_number", backorder.BackorderNumber), "fulfillment.backorder_cancelled")
	}
	return backorder, nil
}
