package fulfillment

import (
	"fmt"
	"strings"

	"github.com/bsm/redislock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/fulfillment-backend/internal/backorders"
	"github.com/angelmondragon/fulfillment-backend/internal/deliveries"
	"github.com/angelmondragon/fulfillment-backend/internal/numbering"
	"github.com/angelmondragon/fulfillment-backend/internal/salesorders"
	"github.com/angelmondragon/fulfillment-backend/internal/stock"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

// Dependencies are the process-wide handles a coordinator is assembled from.
// Redis is optional unless the config selects it for numbering or locking.
type Dependencies struct {
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
	Logger     *logger.Logger
}

// NewFromConfig assembles the coordinator with its repositories, factories
// and the sequencer and locker the config selects.
func NewFromConfig(cfg config.FulfillmentConfig, deps Dependencies) (Service, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	conn := deps.DB.DB()

	var seq numbering.Sequencer
	switch strings.ToLower(cfg.NumberSource) {
	case config.NumberSourceRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis number source requires a redis client")
		}
		seq = numbering.NewRedisSequencer(deps.Redis)
	default:
		// SQLite runs on a single connection, so its counter shares the run
		// transaction.
		if deps.DB.IsSQLite() {
			seq = numbering.NewDBSequencer(conn)
		} else {
			seq = numbering.NewDetachedDBSequencer(conn)
		}
	}
	gen, err := numbering.NewGenerator(seq)
	if err != nil {
		return nil, err
	}

	var locker Locker
	if strings.ToLower(cfg.OrderLock) == config.OrderLockRedis {
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis order lock requires a redis client")
		}
		locker, err = NewRedisLocker(redislock.New(deps.Redis.Raw()), deps.Redis, cfg.OrderLockTTL, cfg.OrderLockWait)
		if err != nil {
			return nil, err
		}
	}

	condition, err := enums.ParseItemCondition(cfg.DefaultCondition)
	if err != nil {
		return nil, err
	}

	fm := metrics.NewFulfillmentMetrics(deps.Registerer)

	deliveryRepo := deliveries.NewRepository(conn)
	backorderRepo := backorders.NewRepository(conn)
	deliveryFactory, err := deliveries.NewFactory(deliveries.FactoryParams{
		Repository:     deliveryRepo,
		Numberer:       gen,
		Logger:         logg,
		Observer:       fm,
		NumberAttempts: cfg.NumberRetries,
	})
	if err != nil {
		return nil, err
	}
	backorderFactory, err := backorders.NewFactory(backorders.FactoryParams{
		Repository:     backorderRepo,
		Numberer:       gen,
		Logger:         logg,
		Observer:       fm,
		NumberAttempts: cfg.NumberRetries,
	})
	if err != nil {
		return nil, err
	}

	return NewService(ServiceParams{
		Tx:               deps.DB,
		SalesOrders:      salesorders.NewRepository(conn),
		Deliveries:       deliveryRepo,
		Backorders:       backorderRepo,
		Ledger:           stock.NewLedger(conn),
		DeliveryFactory:  deliveryFactory,
		BackorderFactory: backorderFactory,
		Outbox:           outbox.NewService(outbox.NewRepository(conn), logg),
		Locker:           locker,
		Metrics:          fm,
		Logger:           logg,
		Atomic:           cfg.Atomic,
		DefaultCondition: condition,
	})
}
