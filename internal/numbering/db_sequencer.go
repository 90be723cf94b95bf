package numbering

import (
	"context"

	"gorm.io/gorm"
)

// DBSequencer keeps counters in the document_sequences table. The upsert
// takes a row lock so concurrent callers never see the same value.
type DBSequencer struct {
	db       *gorm.DB
	detached bool
}

func NewDBSequencer(db *gorm.DB) *DBSequencer {
	return &DBSequencer{db: db}
}

// NewDetachedDBSequencer ignores WithTx and commits every increment on its
// own connection, so the counter row is locked only for one statement.
// Numbers skipped by a rolled back run leave gaps. It needs a pool with more
// than one connection.
func NewDetachedDBSequencer(db *gorm.DB) *DBSequencer {
	return &DBSequencer{db: db, detached: true}
}

func (s *DBSequencer) WithTx(tx *gorm.DB) Sequencer {
	if tx == nil || s.detached {
		return s
	}
	return &DBSequencer{db: tx}
}

func (s *DBSequencer) Next(ctx context.Context, prefix, day string) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).Raw(`
		INSERT INTO document_sequences (prefix, day, last_value)
		VALUES (?, ?, 1)
		ON CONFLICT (prefix, day)
		DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value
	`, prefix, day).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
