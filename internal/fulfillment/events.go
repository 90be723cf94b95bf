package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

func actorRef(meta RequestMeta) *outbox.ActorRef {
	if meta.ActorID == "" && meta.RequestID == "" {
		return nil
	}
	return &outbox.ActorRef{ActorID: meta.ActorID, RequestID: meta.RequestID}
}

func deliveryCreatedEvent(delivery *models.DeliveryOrder, meta RequestMeta) outbox.DomainEvent {
	lines := make([]payloads.DocumentLine, 0, len(delivery.Items))
	condition := enums.ItemConditionGood
	for _, item := range delivery.Items {
		lines = append(lines, payloads.DocumentLine{
			SalesOrderItemID: item.SalesOrderItemID,
			ProductID:        item.ProductID,
			Quantity:         item.DeliveredQuantity,
			UnitPrice:        item.UnitPrice,
		})
		condition = item.ConditionStatus
	}
	return outbox.DomainEvent{
		EventType:     enums.EventDeliveryOrderCreated,
		AggregateType: enums.AggregateDeliveryOrder,
		AggregateID:   delivery.ID,
		Actor:         actorRef(meta),
		Data: payloads.DeliveryOrderCreatedEvent{
			DeliveryOrderID: delivery.ID,
			Number:          delivery.DeliveryNumber,
			SalesOrderID:    delivery.SalesOrderID,
			CustomerID:      delivery.CustomerID,
			Condition:       condition,
			Total:           delivery.TotalDeliveredAmount,
			Lines:           lines,
		},
	}
}

func backorderCreatedEvent(backorder *models.Backorder, meta RequestMeta) outbox.DomainEvent {
	lines := make([]payloads.DocumentLine, 0, len(backorder.Items))
	for _, item := range backorder.Items {
		lines = append(lines, payloads.DocumentLine{
			SalesOrderItemID: item.SalesOrderItemID,
			ProductID:        item.ProductID,
			Quantity:         item.BackorderedQuantity,
			UnitPrice:        item.UnitPrice,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventBackorderCreated,
		AggregateType: enums.AggregateBackorder,
		AggregateID:   backorder.ID,
		Actor:         actorRef(meta),
		Data: payloads.BackorderCreatedEvent{
			BackorderID:  backorder.ID,
			Number:       backorder.BackorderNumber,
			SalesOrderID: backorder.SalesOrderID,
			CustomerID:   backorder.CustomerID,
			Total:        backorder.TotalAmount,
			Lines:        lines,
		},
	}
}

func backorderFulfilledEvent(backorder *models.Backorder, deliveryID uuid.UUID, meta RequestMeta) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventBackorderFulfilled,
		AggregateType: enums.AggregateBackorder,
		AggregateID:   backorder.ID,
		Actor:         actorRef(meta),
		Data: payloads.BackorderFulfilledEvent{
			BackorderID:     backorder.ID,
			SalesOrderID:    backorder.SalesOrderID,
			DeliveryOrderID: deliveryID,
		},
	}
}

func backorderCancelledEvent(backorder *models.Backorder, reason string, meta RequestMeta) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventBackorderCancelled,
		AggregateType: enums.AggregateBackorder,
		AggregateID:   backorder.ID,
		Actor:         actorRef(meta),
		Data: payloads.BackorderCancelledEvent{
			BackorderID:  backorder.ID,
			SalesOrderID: backorder.SalesOrderID,
			Reason:       reason,
		},
	}
}

func documentDeletedEvent(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, id uuid.UUID, number string, salesOrderID uuid.UUID, at time.Time, meta RequestMeta) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   id,
		Actor:         actorRef(meta),
		Data: payloads.DocumentDeletedEvent{
			DocumentID:   id,
			Number:       number,
			SalesOrderID: salesOrderID,
			DeletedAt:    at,
		},
	}
}

func statusChangedEvent(salesOrderID uuid.UUID, previous, next enums.SalesOrderDeliveryStatus, meta RequestMeta) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventSalesOrderDeliveryProgress,
		AggregateType: enums.AggregateSalesOrder,
		AggregateID:   salesOrderID,
		Actor:         actorRef(meta),
		Data: payloads.SalesOrderDeliveryStatusChangedEvent{
			SalesOrderID:   salesOrderID,
			PreviousStatus: previous,
			Status:         next,
		},
	}
}

func stockRestockedEvent(productID uuid.UUID, qty, balance decimal.Decimal, meta RequestMeta) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventStockRestocked,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		Actor:         actorRef(meta),
		Data: payloads.StockRestockedEvent{
			ProductID: productID,
			Quantity:  qty,
			Balance:   balance,
		},
	}
}
