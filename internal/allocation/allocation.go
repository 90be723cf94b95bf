// Package allocation decides how much of each outstanding sales order line
// ships now and how much is deferred to a backorder.
package allocation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is the planner's view of a sales order line.
type Line struct {
	LineID      uuid.UUID
	ProductID   uuid.UUID
	Ordered     decimal.Decimal
	Delivered   decimal.Decimal
	Backordered decimal.Decimal // open quantity on pending backorders
	UnitPrice   decimal.Decimal
}

// Outstanding is the quantity neither delivered nor already waiting on an
// open backorder.
func (l Line) Outstanding() decimal.Decimal {
	return l.Ordered.Sub(l.Delivered).Sub(l.Backordered)
}

// Allocation assigns a quantity of one line to a document.
type Allocation struct {
	LineID    uuid.UUID
	ProductID uuid.UUID
	Ordered   decimal.Decimal
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Amount is Quantity × UnitPrice.
func (a Allocation) Amount() decimal.Decimal {
	return a.Quantity.Mul(a.UnitPrice)
}

// Plan is the outcome of Split. Each line appears at most once per set.
type Plan struct {
	ToDeliver   []Allocation
	ToBackorder []Allocation
}

// Split plans every line against a stock snapshot. It never mutates stock;
// the snapshot is drawn down locally so two lines on the same product cannot
// both claim the same units. Products missing from stock count as zero.
func Split(lines []Line, stock map[uuid.UUID]decimal.Decimal) Plan {
	remaining := make(map[uuid.UUID]decimal.Decimal, len(stock))
	for id, qty := range stock {
		remaining[id] = qty
	}

	var plan Plan
	for _, line := range lines {
		outstanding := line.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}

		available := remaining[line.ProductID]
		if available.IsNegative() {
			available = decimal.Zero
		}

		deliver := decimal.Min(available, outstanding)
		backorder := outstanding.Sub(deliver)

		if deliver.IsPositive() {
			plan.ToDeliver = append(plan.ToDeliver, line.allocate(deliver))
			remaining[line.ProductID] = available.Sub(deliver)
		}
		if backorder.IsPositive() {
			plan.ToBackorder = append(plan.ToBackorder, line.allocate(backorder))
		}
	}
	return plan
}

func (l Line) allocate(qty decimal.Decimal) Allocation {
	return Allocation{
		LineID:    l.LineID,
		ProductID: l.ProductID,
		Ordered:   l.Ordered,
		Quantity:  qty,
		UnitPrice: l.UnitPrice,
	}
}

// Demote moves the deliver allocation for lineID into the backorder set,
// merging it with an existing backorder allocation for the same line. It
// reports whether anything moved.
func (p *Plan) Demote(lineID uuid.UUID) bool {
	idx := -1
	for i, alloc := range p.ToDeliver {
		if alloc.LineID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	demoted := p.ToDeliver[idx]
	p.ToDeliver = append(p.ToDeliver[:idx], p.ToDeliver[idx+1:]...)

	for i := range p.ToBackorder {
		if p.ToBackorder[i].LineID == lineID {
			p.ToBackorder[i].Quantity = p.ToBackorder[i].Quantity.Add(demoted.Quantity)
			return true
		}
	}
	p.ToBackorder = append(p.ToBackorder, demoted)
	return true
}

// IsEmpty reports whether there is nothing to deliver or backorder.
func (p Plan) IsEmpty() bool {
	return len(p.ToDeliver) == 0 && len(p.ToBackorder) == 0
}

// TotalToDeliver sums the deliver quantities.
func (p Plan) TotalToDeliver() decimal.Decimal {
	return sum(p.ToDeliver)
}

// TotalToBackorder sums the backorder quantities.
func (p Plan) TotalToBackorder() decimal.Decimal {
	return sum(p.ToBackorder)
}

func sum(allocs []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, alloc := range allocs {
		total = total.Add(alloc.Quantity)
	}
	return total
}

// TotalAmount sums Quantity × UnitPrice across allocations.
func TotalAmount(allocs []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, alloc := range allocs {
		total = total.Add(alloc.Amount())
	}
	return total
}
