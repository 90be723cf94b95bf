// Package numbering issues human-readable document numbers of the form
// PREFIX-YYMMDD-NNNN from a per-day monotonic counter.
package numbering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

const (
	PrefixDeliveryOrder = "DO"
	PrefixBackorder     = "BO"

	dayLayout = "060102"
)

// Sequencer hands out the next counter value for a prefix and day.
type Sequencer interface {
	WithTx(tx *gorm.DB) Sequencer
	Next(ctx context.Context, prefix, day string) (int64, error)
}

// Numberer is what the document factories depend on.
type Numberer interface {
	WithTx(tx *gorm.DB) Numberer
	Generate(ctx context.Context, prefix string, at time.Time) (string, error)
}

// Generator formats sequencer values into document numbers.
type Generator struct {
	seq Sequencer
}

// NewGenerator wraps a sequencer.
func NewGenerator(seq Sequencer) (*Generator, error) {
	if seq == nil {
		return nil, fmt.Errorf("sequencer required")
	}
	return &Generator{seq: seq}, nil
}

func (g *Generator) WithTx(tx *gorm.DB) Numberer {
	if tx == nil {
		return g
	}
	return &Generator{seq: g.seq.WithTx(tx)}
}

// Generate returns the next number for prefix on the UTC day of at.
func (g *Generator) Generate(ctx context.Context, prefix string, at time.Time) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "document prefix is required")
	}
	day := at.UTC().Format(dayLayout)
	value, err := g.seq.Next(ctx, prefix, day)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate document number")
	}
	return Format(prefix, day, value), nil
}

// Format renders a number. Counters above 9999 widen instead of wrapping.
func Format(prefix, day string, value int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day, value)
}
