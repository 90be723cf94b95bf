package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveDeliveryOrderCreated(t *testing.T) {
	reg := newTestEventRegistry(t)

	deliveryID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.DeliveryOrderCreatedEvent{
		DeliveryOrderID: deliveryID,
		Number:          "DO-260301-0001",
		SalesOrderID:    uuid.New(),
		Condition:       enums.ItemConditionGood,
		Total:           decimal.NewFromInt(30),
	})

	event := models.OutboxEvent{
		EventType:     enums.EventDeliveryOrderCreated,
		AggregateType: enums.AggregateDeliveryOrder,
		AggregateID:   deliveryID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "fulfillment-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.DeliveryOrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.DeliveryOrderID != deliveryID || payload.Number != "DO-260301-0001" {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing: %+v", resolved.Envelope)
	}
}

func TestEventRegistryRoutesRestockToInventoryTopic(t *testing.T) {
	reg := newTestEventRegistry(t)

	productID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventStockRestocked,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		Payload: mustEnvelope(t, mustMarshal(t, payloads.StockRestockedEvent{
			ProductID: productID,
			Quantity:  decimal.NewFromInt(5),
			Balance:   decimal.NewFromInt(5),
		})),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "inventory-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	topics := reg.Topics()
	if len(topics) != 2 || topics[0] != "fulfillment-topic" || topics[1] != "inventory-topic" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestEventRegistryResolveRejects(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("order_paid"),
			AggregateType: enums.AggregateSalesOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventBackorderCreated,
			AggregateType: enums.AggregateDeliveryOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventBackorderCreated,
			AggregateType: enums.AggregateBackorder,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventBackorderCreated,
			AggregateType: enums.AggregateBackorder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventBackorderCreated,
			AggregateType: enums.AggregateBackorder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			if err == nil {
				t.Fatalf("expected error")
			}
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %T", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{InventoryTopic: "inventory"}); err == nil {
		t.Fatal("expected missing fulfillment topic to fail")
	}
	if _, err := NewEventRegistry(config.PubSubConfig{FulfillmentTopic: "fulfillment"}); err == nil {
		t.Fatal("expected missing inventory topic to fail")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		FulfillmentTopic: "fulfillment-topic",
		InventoryTopic:   "inventory-topic",
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
