package salesorders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// ProjectDeliveryStatus recomputes the order rollup from the full line set.
// Completed is terminal: once reached it is returned regardless of items.
func ProjectDeliveryStatus(current enums.SalesOrderDeliveryStatus, items []models.SalesOrderItem) enums.SalesOrderDeliveryStatus {
	if current.IsTerminal() {
		return current
	}

	ordered, delivered := decimal.Zero, decimal.Zero
	for _, item := range items {
		ordered = ordered.Add(item.Quantity)
		delivered = delivered.Add(item.DeliveredQuantity)
	}

	switch {
	case !delivered.IsPositive():
		return enums.SalesOrderDeliveryPending
	case delivered.LessThan(ordered):
		return enums.SalesOrderDeliveryPartial
	default:
		return enums.SalesOrderDeliveryCompleted
	}
}
