package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a zero primary key before insert. Postgres also defaults the
// column, but SQLite has no uuid generator.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (p *Product) BeforeCreate(*gorm.DB) error           { assignID(&p.ID); return nil }
func (s *StockMovement) BeforeCreate(*gorm.DB) error     { assignID(&s.ID); return nil }
func (o *SalesOrder) BeforeCreate(*gorm.DB) error        { assignID(&o.ID); return nil }
func (i *SalesOrderItem) BeforeCreate(*gorm.DB) error    { assignID(&i.ID); return nil }
func (d *DeliveryOrder) BeforeCreate(*gorm.DB) error     { assignID(&d.ID); return nil }
func (i *DeliveryOrderItem) BeforeCreate(*gorm.DB) error { assignID(&i.ID); return nil }
func (b *Backorder) BeforeCreate(*gorm.DB) error         { assignID(&b.ID); return nil }
func (i *BackorderItem) BeforeCreate(*gorm.DB) error     { assignID(&i.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error       { assignID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error         { assignID(&d.ID); return nil }
