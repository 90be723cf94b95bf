package salesorders

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

func item(ordered, delivered int64) models.SalesOrderItem {
	return models.SalesOrderItem{
		Quantity:          decimal.NewFromInt(ordered),
		DeliveredQuantity: decimal.NewFromInt(delivered),
	}
}

func TestProjectDeliveryStatus(t *testing.T) {
	cases := []struct {
		name    string
		current enums.SalesOrderDeliveryStatus
		items   []models.SalesOrderItem
		want    enums.SalesOrderDeliveryStatus
	}{
		{"nothing delivered", enums.SalesOrderDeliveryPending, []models.SalesOrderItem{item(10, 0)}, enums.SalesOrderDeliveryPending},
		{"some delivered", enums.SalesOrderDeliveryPending, []models.SalesOrderItem{item(10, 4)}, enums.SalesOrderDeliveryPartial},
		{"one line done of two", enums.SalesOrderDeliveryPartial, []models.SalesOrderItem{item(3, 0), item(2, 2)}, enums.SalesOrderDeliveryPartial},
		{"all delivered", enums.SalesOrderDeliveryPartial, []models.SalesOrderItem{item(3, 3), item(2, 2)}, enums.SalesOrderDeliveryCompleted},
		{"no lines", enums.SalesOrderDeliveryPending, nil, enums.SalesOrderDeliveryPending},
		{"completed is terminal", enums.SalesOrderDeliveryCompleted, []models.SalesOrderItem{item(10, 0)}, enums.SalesOrderDeliveryCompleted},
		{"blank current", "", []models.SalesOrderItem{item(1, 1)}, enums.SalesOrderDeliveryCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ProjectDeliveryStatus(tc.current, tc.items); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
