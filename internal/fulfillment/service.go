// Package fulfillment turns outstanding sales order demand into delivery
// orders and backorders while keeping stock, line counters and the order
// delivery status consistent.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/backorders"
	"github.com/angelmondragon/fulfillment-backend/internal/deliveries"
	"github.com/angelmondragon/fulfillment-backend/internal/salesorders"
	"github.com/angelmondragon/fulfillment-backend/internal/stock"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
)

const (
	opFulfill          = "fulfill"
	opFulfillBackorder = "fulfill_backorder"
	opCancelBackorder  = "cancel_backorder"
	opDeleteDelivery   = "delete_delivery_order"
	opDeleteBackorder  = "delete_backorder"
	opRestock          = "restock"

	restockBatchSize = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitAll(ctx context.Context, tx *gorm.DB, events []outbox.DomainEvent) error
}

// Service is the fulfillment coordinator.
type Service interface {
	Fulfill(ctx context.Context, salesOrderID uuid.UUID, meta RequestMeta) (*Result, error)
	FulfillBackorder(ctx context.Context, backorderID uuid.UUID, meta RequestMeta) (*Result, error)
	FulfillPendingForProduct(ctx context.Context, productID uuid.UUID, meta RequestMeta) ([]Result, error)
	CancelBackorder(ctx context.Context, backorderID uuid.UUID, reason string, meta RequestMeta) (*models.Backorder, error)
	DeleteDeliveryOrder(ctx context.Context, id uuid.UUID, meta RequestMeta) error
	DeleteBackorder(ctx context.Context, id uuid.UUID, meta RequestMeta) error
	GetDeliveryOrder(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error)
	GetBackorder(ctx context.Context, id uuid.UUID) (*models.Backorder, error)
	ListDeliveryOrders(ctx context.Context, salesOrderID uuid.UUID) ([]models.DeliveryOrder, error)
	ListBackorders(ctx context.Context, salesOrderID uuid.UUID) ([]models.Backorder, error)
	Restock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal, meta RequestMeta) (*RestockResult, error)
}

// RequestMeta carries caller context and optional document header fields.
type RequestMeta struct {
	ActorID   string
	RequestID string
	Date      time.Time
	Notes     *string
	Condition enums.ItemCondition
}

// Result describes what one run produced. Nil documents mean the
// corresponding set was empty.
type Result struct {
	SalesOrderID   uuid.UUID                      `json:"salesOrderId"`
	DeliveryOrder  *models.DeliveryOrder          `json:"deliveryOrder,omitempty"`
	Backorder      *models.Backorder              `json:"backorder,omitempty"`
	DeliveryStatus enums.SalesOrderDeliveryStatus `json:"deliveryStatus"`
	DemotedLineIDs []uuid.UUID                    `json:"demotedLineIds,omitempty"`
}

// RestockResult is the product balance after a restock.
type RestockResult struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
	Balance   decimal.Decimal `json:"balance"`
}

// ServiceParams wires the coordinator.
type ServiceParams struct {
	Tx               txRunner
	SalesOrders      salesorders.Repository
	Deliveries       deliveries.Repository
	Backorders       backorders.Repository
	Ledger           stock.Ledger
	DeliveryFactory  deliveries.Factory
	BackorderFactory backorders.Factory
	Outbox           outboxPublisher
	Locker           Locker
	Metrics          *metrics.FulfillmentMetrics
	Logger           *logger.Logger
	// Atomic runs each operation in a single database transaction with the
	// sales order row locked.
	Atomic           bool
	DefaultCondition enums.ItemCondition
	Now              func() time.Time
}

type service struct {
	tx               txRunner
	orders           salesorders.Repository
	deliveries       deliveries.Repository
	backorders       backorders.Repository
	ledger           stock.Ledger
	deliveryFactory  deliveries.Factory
	backorderFactory backorders.Factory
	outbox           outboxPublisher
	locker           Locker
	metrics          *metrics.FulfillmentMetrics
	logg             *logger.Logger
	atomic           bool
	condition        enums.ItemCondition
	now              func() time.Time
}

// NewService validates dependencies and builds the coordinator.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.SalesOrders == nil {
		return nil, fmt.Errorf("sales order repository required")
	}
	if params.Deliveries == nil {
		return nil, fmt.Errorf("delivery order repository required")
	}
	if params.Backorders == nil {
		return nil, fmt.Errorf("backorder repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.DeliveryFactory == nil {
		return nil, fmt.Errorf("delivery order factory required")
	}
	if params.BackorderFactory == nil {
		return nil, fmt.Errorf("backorder factory required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Locker == nil {
		if params.Atomic {
			params.Locker = NoopLocker{}
		} else {
			params.Locker = NewLocalLocker()
		}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.DefaultCondition == "" {
		params.DefaultCondition = enums.ItemConditionGood
	}
	if !params.DefaultCondition.IsValid() {
		return nil, fmt.Errorf("invalid default condition %q", params.DefaultCondition)
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		tx:               params.Tx,
		orders:           params.SalesOrders,
		deliveries:       params.Deliveries,
		backorders:       params.Backorders,
		ledger:           params.Ledger,
		deliveryFactory:  params.DeliveryFactory,
		backorderFactory: params.BackorderFactory,
		outbox:           params.Outbox,
		locker:           params.Locker,
		metrics:          params.Metrics,
		logg:             params.Logger,
		atomic:           params.Atomic,
		condition:        params.DefaultCondition,
		now:              params.Now,
	}, nil
}

// unit is the set of collaborators one operation works through. tx is nil
// when steps commit individually.
type unit struct {
	tx               *gorm.DB
	orders           salesorders.Repository
	deliveries       deliveries.Repository
	backorders       backorders.Repository
	ledger           stock.Ledger
	deliveryFactory  deliveries.Factory
	backorderFactory backorders.Factory
}

func (s *service) bind(tx *gorm.DB) unit {
	return unit{
		tx:               tx,
		orders:           s.orders.WithTx(tx),
		deliveries:       s.deliveries.WithTx(tx),
		backorders:       s.backorders.WithTx(tx),
		ledger:           s.ledger.WithTx(tx),
		deliveryFactory:  s.deliveryFactory.WithTx(tx),
		backorderFactory: s.backorderFactory.WithTx(tx),
	}
}

// within runs fn in one transaction in atomic mode and unbound otherwise.
func (s *service) within(ctx context.Context, fn func(u unit) error) error {
	if !s.atomic {
		return fn(s.bind(nil))
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.bind(tx))
	})
}

// inTx reuses the unit's transaction or opens a short one for fn.
func (s *service) inTx(ctx context.Context, u unit, fn func(u unit) error) error {
	if u.tx != nil {
		return fn(u)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.bind(tx))
	})
}

func (s *service) locked(ctx context.Context, salesOrderID uuid.UUID, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, salesOrderID.String())
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "fulfillment.lock_release_failed")
		}
	}()
	return fn()
}

func (s *service) requestContext(ctx context.Context, operation string, meta RequestMeta) context.Context {
	ctx = s.logg.WithField(ctx, "operation", operation)
	if meta.RequestID != "" {
		ctx = s.logg.WithRequestID(ctx, meta.RequestID)
	}
	if meta.ActorID != "" {
		ctx = s.logg.WithActor(ctx, meta.ActorID)
	}
	return ctx
}

func (s *service) observe(ctx context.Context, operation, outcome string, start time.Time, err error) {
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.ObserveRun(operation, outcome, s.now().Sub(start))
	if err == nil {
		return
	}
	if typed := pkgerrors.As(err); typed != nil && pkgerrors.MetadataFor(typed.Code()).HTTPStatus < 500 {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "fulfillment.rejected")
		return
	}
	s.logg.Error(ctx, "fulfillment.failed", err)
}

func (s *service) loadOrder(ctx context.Context, u unit, id uuid.UUID) (*models.SalesOrder, error) {
	var (
		order *models.SalesOrder
		err   error
	)
	if u.tx != nil {
		order, err = u.orders.FindByIDForUpdate(ctx, id)
	} else {
		order, err = u.orders.FindByID(ctx, id)
	}
	if err != nil {
		return nil, translate(err, "sales order")
	}
	return order, nil
}

func (s *service) documentDate(meta RequestMeta) time.Time {
	if !meta.Date.IsZero() {
		return meta.Date.UTC()
	}
	return s.now().UTC()
}

func (s *service) conditionFor(meta RequestMeta) enums.ItemCondition {
	if meta.Condition != "" {
		return meta.Condition
	}
	return s.condition
}

func actorOf(meta RequestMeta) *string {
	if meta.ActorID == "" {
		return nil
	}
	actor := meta.ActorID
	return &actor
}

// translate maps repository errors onto service error codes.
func translate(err error, subject string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, subject+" not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+subject)
}
