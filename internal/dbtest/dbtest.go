// Package dbtest opens isolated in-memory SQLite databases with the full
// schema for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Open returns a migrated in-memory database unique to the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_busy_timeout=5000", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

// D parses a decimal literal, failing loudly on typos in fixtures.
func D(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// SeedProduct inserts a product with the given stock.
func SeedProduct(t testing.TB, conn *gorm.DB, sku string, stock string) models.Product {
	t.Helper()
	product := models.Product{SKU: sku, Name: sku, Stock: D(stock)}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product %s: %v", sku, err)
	}
	return product
}

// LineSeed describes one sales order line to insert.
type LineSeed struct {
	ProductID uuid.UUID
	Quantity  string
	Delivered string
	UnitPrice string
}

// SeedSalesOrder inserts a pending sales order with its lines.
func SeedSalesOrder(t testing.TB, conn *gorm.DB, lines ...LineSeed) models.SalesOrder {
	t.Helper()
	order := models.SalesOrder{
		OrderNumber:    "SO-" + uuid.NewString()[:8],
		CustomerID:     uuid.New(),
		DeliveryStatus: enums.SalesOrderDeliveryPending,
	}
	for _, line := range lines {
		delivered := line.Delivered
		if delivered == "" {
			delivered = "0"
		}
		price := line.UnitPrice
		if price == "" {
			price = "0"
		}
		order.Items = append(order.Items, models.SalesOrderItem{
			ProductID:         line.ProductID,
			Quantity:          D(line.Quantity),
			DeliveredQuantity: D(delivered),
			UnitPrice:         D(price),
		})
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed sales order: %v", err)
	}
	return order
}

// ProductStock reads the current stock of a product.
func ProductStock(t testing.TB, conn *gorm.DB, productID uuid.UUID) decimal.Decimal {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.Stock
}
