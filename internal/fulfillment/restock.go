package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/stock"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
)

const referenceRestock = "restock"

// Restock adds on-hand stock and queues a stock_restocked event in the same
// transaction. Open backorders are retried by the restock worker.
func (s *service) Restock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal, meta RequestMeta) (*RestockResult, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	ctx = s.logg.WithField(s.requestContext(ctx, opRestock, meta), "product_id", productID.String())
	start := s.now()

	result := &RestockResult{ProductID: productID, Quantity: qty}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		balance, err := s.ledger.WithTx(tx).Restock(ctx, productID, qty, stock.Reference{Type: referenceRestock})
		if err != nil {
			return err
		}
		result.Balance = balance
		event := stockRestockedEvent(productID, qty, balance, meta)
		if err := s.outbox.EmitAll(ctx, tx, []outbox.DomainEvent{event}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue restock event")
		}
		return nil
	})
	s.observe(ctx, opRestock, metrics.OutcomeSuccess, start, err)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"quantity": qty.String(),
		"balance":  result.Balance.String(),
	}
	if meta.Notes != nil {
		fields["note"] = *meta.Notes
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "fulfillment.restocked")
	return result, nil
}
