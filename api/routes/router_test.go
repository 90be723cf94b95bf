package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/backorders"
	"github.com/angelmondragon/fulfillment-backend/internal/dbtest"
	"github.com/angelmondragon/fulfillment-backend/internal/deliveries"
	"github.com/angelmondragon/fulfillment-backend/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-backend/internal/numbering"
	"github.com/angelmondragon/fulfillment-backend/internal/salesorders"
	"github.com/angelmondragon/fulfillment-backend/internal/stock"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
)

type testServer struct {
	handler http.Handler
	db      *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	now := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	gen, err := numbering.NewGenerator(numbering.NewDBSequencer(conn))
	require.NoError(t, err)
	deliveryRepo := deliveries.NewRepository(conn)
	backorderRepo := backorders.NewRepository(conn)
	deliveryFactory, err := deliveries.NewFactory(deliveries.FactoryParams{Repository: deliveryRepo, Numberer: gen, Logger: logg, Now: now})
	require.NoError(t, err)
	backorderFactory, err := backorders.NewFactory(backorders.FactoryParams{Repository: backorderRepo, Numberer: gen, Logger: logg, Now: now})
	require.NoError(t, err)

	client := db.NewFromGorm(conn)
	svc, err := fulfillment.NewService(fulfillment.ServiceParams{
		Tx:               client,
		SalesOrders:      salesorders.NewRepository(conn),
		Deliveries:       deliveryRepo,
		Backorders:       backorderRepo,
		Ledger:           stock.NewLedger(conn),
		DeliveryFactory:  deliveryFactory,
		BackorderFactory: backorderFactory,
		Outbox:           outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:          metrics.NewFulfillmentMetrics(reg),
		Logger:           logg,
		Atomic:           true,
		Now:              now,
	})
	require.NoError(t, err)

	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	handler := NewRouter(cfg, logg, client, nil, svc, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &testServer{handler: handler, db: conn}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Actor-Id", "clerk-1")
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	resp = srv.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"db":"up"`)
}

func TestFulfillmentFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	product := dbtest.SeedProduct(t, srv.db, "SKU-1", "4")
	order := dbtest.SeedSalesOrder(t, srv.db, dbtest.LineSeed{ProductID: product.ID, Quantity: "10", UnitPrice: "3"})
	base := "/api/v1/sales-orders/" + order.ID.String()

	resp := srv.do(t, http.MethodPost, base+"/fulfill", `{"notes":"first wave"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var result struct {
		DeliveryOrder struct {
			ID             string `json:"id"`
			DeliveryNumber string `json:"deliveryNumber"`
			CreatedBy      string `json:"createdBy"`
		} `json:"deliveryOrder"`
		Backorder struct {
			ID              string `json:"id"`
			BackorderNumber string `json:"backorderNumber"`
		} `json:"backorder"`
		DeliveryStatus string `json:"deliveryStatus"`
	}
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &result))
	assert.Equal(t, "DO-260301-0001", result.DeliveryOrder.DeliveryNumber)
	assert.Equal(t, "clerk-1", result.DeliveryOrder.CreatedBy)
	assert.Equal(t, "BO-260301-0001", result.Backorder.BackorderNumber)
	assert.Equal(t, "partial", result.DeliveryStatus)

	resp = srv.do(t, http.MethodPost, base+"/fulfill", "")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = srv.do(t, http.MethodGet, base+"/delivery-orders", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "DO-260301-0001")

	resp = srv.do(t, http.MethodGet, "/api/v1/backorders/"+result.Backorder.ID, "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "BO-260301-0001")

	resp = srv.do(t, http.MethodPost, "/api/v1/products/"+product.ID.String()+"/restock", `{"quantity":6}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = srv.do(t, http.MethodPost, "/api/v1/backorders/"+result.Backorder.ID+"/fulfill", "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"deliveryStatus":"completed"`)

	resp = srv.do(t, http.MethodDelete, "/api/v1/delivery-orders/"+result.DeliveryOrder.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = srv.do(t, http.MethodGet, "/api/v1/delivery-orders/"+result.DeliveryOrder.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = srv.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "fulfillment_runs_total")
}

func TestUnknownSalesOrderReturnsNotFound(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, http.MethodPost, "/api/v1/sales-orders/7b0d9a53-5a43-4d55-9a3c-3b0f6b3b8a11/fulfill", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	env := decode(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestInvalidPathParameter(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, http.MethodGet, "/api/v1/backorders/nope", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
