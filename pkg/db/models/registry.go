package models

// All lists every persisted model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&Product{},
		&StockMovement{},
		&SalesOrder{},
		&SalesOrderItem{},
		&DeliveryOrder{},
		&DeliveryOrderItem{},
		&Backorder{},
		&BackorderItem{},
		&DocumentSequence{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
