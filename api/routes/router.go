package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/fulfillment-backend/api/controllers"
	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	"github.com/angelmondragon/fulfillment-backend/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

// NewRouter builds the HTTP surface. redisClient may be nil, in which case
// idempotency replay is disabled. metricsHandler may be nil to omit /metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	fulfillmentService fulfillment.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	deps := map[string]controllers.Pinger{"db": dbP}
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		deps["redis"] = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/sales-orders/{salesOrderId}", func(r chi.Router) {
			r.Post("/fulfill", controllers.FulfillSalesOrder(fulfillmentService, logg))
			r.Get("/delivery-orders", controllers.ListDeliveryOrders(fulfillmentService, logg))
			r.Get("/backorders", controllers.ListBackorders(fulfillmentService, logg))
		})

		r.Route("/delivery-orders/{deliveryOrderId}", func(r chi.Router) {
			r.Get("/", controllers.GetDeliveryOrder(fulfillmentService, logg))
			r.Delete("/", controllers.DeleteDeliveryOrder(fulfillmentService, logg))
		})

		r.Route("/backorders/{backorderId}", func(r chi.Router) {
			r.Get("/", controllers.GetBackorder(fulfillmentService, logg))
			r.Delete("/", controllers.DeleteBackorder(fulfillmentService, logg))
			r.Post("/fulfill", controllers.FulfillBackorder(fulfillmentService, logg))
			r.Post("/cancel", controllers.CancelBackorder(fulfillmentService, logg))
		})

		r.Post("/products/{productId}/restock", controllers.RestockProduct(fulfillmentService, logg))
	})

	return r
}
