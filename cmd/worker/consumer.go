package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/registry"
)

const (
	consumerName = "restock"
	workerActor  = "restock-worker"
)

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type backorderRetrier interface {
	FulfillPendingForProduct(ctx context.Context, productID uuid.UUID, meta fulfillment.RequestMeta) ([]fulfillment.Result, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// ConsumerParams wires the restock consumer. Idempotency is optional;
// retrying backorders for the same product twice ships nothing new.
type ConsumerParams struct {
	Subscription receiver
	Fulfillment  backorderRetrier
	Idempotency  idempotencyChecker
	Metrics      *metrics.WorkerMetrics
	Logger       *logger.Logger
}

// Consumer retries pending backorders whenever a product is restocked.
type Consumer struct {
	subscription receiver
	fulfillment  backorderRetrier
	idempotency  idempotencyChecker
	decoders     *registry.DecoderRegistry
	metrics      *metrics.WorkerMetrics
	logg         *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, errors.New("inventory subscription is required")
	}
	if params.Fulfillment == nil {
		return nil, errors.New("fulfillment service is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventStockRestocked, 1, registry.JSONDecoder[payloads.StockRestockedEvent]())

	return &Consumer{
		subscription: params.Subscription,
		fulfillment:  params.Fulfillment,
		idempotency:  params.Idempotency,
		decoders:     decoders,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// Run receives until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if c.process(msgCtx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

type decodedRestock struct {
	eventID uuid.UUID
	event   *payloads.StockRestockedEvent
}

// process handles one message and reports whether it should be acked.
// Malformed and unrelated messages are acked so they are not redelivered.
func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	})

	eventType := strings.TrimSpace(msg.Attributes["event_type"])
	if eventType != string(enums.EventStockRestocked) {
		c.logg.Debug(logCtx, "restock.skipped")
		return true
	}

	decoded, err := c.decode(msg)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "restock.invalid_message")
		return true
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id":   decoded.eventID.String(),
		"product_id": decoded.event.ProductID.String(),
	})

	if c.idempotency != nil {
		already, err := c.idempotency.CheckAndMarkProcessed(logCtx, consumerName, decoded.eventID)
		if err != nil {
			c.logg.Error(logCtx, "restock.idempotency_failed", err)
			return false
		}
		if already {
			c.logg.Info(logCtx, "restock.duplicate")
			return true
		}
	}

	start := time.Now()
	results, err := c.fulfillment.FulfillPendingForProduct(logCtx, decoded.event.ProductID, fulfillment.RequestMeta{
		ActorID:   workerActor,
		RequestID: decoded.eventID.String(),
	})
	c.metrics.Observe(consumerName, time.Since(start), err)
	if err != nil {
		c.logg.Error(logCtx, "restock.retry_failed", err)
		if c.idempotency != nil {
			if relErr := c.idempotency.Release(context.WithoutCancel(logCtx), consumerName, decoded.eventID); relErr != nil {
				c.logg.Warn(c.logg.WithField(logCtx, "error", relErr.Error()), "restock.release_failed")
			}
		}
		return false
	}

	c.logg.Info(c.logg.WithField(logCtx, "deliveries_created", len(results)), "restock.handled")
	return true
}

func (c *Consumer) decode(msg *gcppubsub.Message) (*decodedRestock, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	rawID := strings.TrimSpace(envelope.EventID)
	if rawID == "" {
		rawID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("event_id: %w", err)
	}

	version := envelope.Version
	if version == 0 {
		version = 1
	}
	payload, err := c.decoders.Decode(enums.EventStockRestocked, version, envelope.Data)
	if err != nil {
		return nil, err
	}
	event, ok := payload.(*payloads.StockRestockedEvent)
	if !ok || event.ProductID == uuid.Nil {
		return nil, errors.New("product_id missing")
	}
	return &decodedRestock{eventID: eventID, event: event}, nil
}
