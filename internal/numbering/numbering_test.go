package numbering

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

var numberPattern = regexp.MustCompile(`^DO-\d{6}-\d{4,}$`)

func TestFormat(t *testing.T) {
	assert.Equal(t, "DO-260301-0007", Format("DO", "260301", 7))
	assert.Equal(t, "BO-260301-12345", Format("BO", "260301", 12345))
}

func TestDBSequencerIncrementsPerDay(t *testing.T) {
	db := dbtest.Open(t)
	gen, err := NewGenerator(NewDBSequencer(db))
	require.NoError(t, err)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)

	first, err := gen.Generate(ctx, PrefixDeliveryOrder, day)
	require.NoError(t, err)
	second, err := gen.Generate(ctx, PrefixDeliveryOrder, day)
	require.NoError(t, err)
	otherPrefix, err := gen.Generate(ctx, PrefixBackorder, day)
	require.NoError(t, err)
	nextDay, err := gen.Generate(ctx, "do", day.Add(2*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "DO-260301-0001", first)
	assert.Equal(t, "DO-260301-0002", second)
	assert.Equal(t, "BO-260301-0001", otherPrefix)
	assert.Equal(t, "DO-260302-0001", nextDay)
}

func TestGeneratorRejectsBlankPrefix(t *testing.T) {
	gen, err := NewGenerator(NewDBSequencer(dbtest.Open(t)))
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "  ", time.Now())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = NewGenerator(nil)
	assert.Error(t, err)
}

func TestDBSequencerConcurrentNumbersAreUnique(t *testing.T) {
	db := dbtest.Open(t)
	gen, err := NewGenerator(NewDBSequencer(db))
	require.NoError(t, err)
	now := time.Now()

	var mu sync.Mutex
	seen := map[string]bool{}
	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			number, err := gen.Generate(context.Background(), PrefixDeliveryOrder, now)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[number] {
				return fmt.Errorf("duplicate number %s", number)
			}
			seen[number] = true
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, seen, 25)
	for number := range seen {
		assert.Regexp(t, numberPattern, number)
	}
}

func TestDetachedDBSequencerCommitsOutsideCallerTx(t *testing.T) {
	counters := dbtest.Open(t)
	caller := dbtest.Open(t)
	attached := NewDBSequencer(caller)
	detached := NewDetachedDBSequencer(counters)
	ctx := context.Background()
	rollback := errors.New("rollback")

	err := caller.Transaction(func(tx *gorm.DB) error {
		value, err := detached.WithTx(tx).Next(ctx, PrefixDeliveryOrder, "260301")
		require.NoError(t, err)
		assert.Equal(t, int64(1), value)

		value, err = attached.WithTx(tx).Next(ctx, PrefixDeliveryOrder, "260301")
		require.NoError(t, err)
		assert.Equal(t, int64(1), value)
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	var kept models.DocumentSequence
	require.NoError(t, counters.First(&kept, "prefix = ? AND day = ?", PrefixDeliveryOrder, "260301").Error)
	assert.Equal(t, int64(1), kept.LastValue)

	var rolledBack int64
	require.NoError(t, caller.Model(&models.DocumentSequence{}).Count(&rolledBack).Error)
	assert.Zero(t, rolledBack)
	assert.Same(t, detached, detached.WithTx(caller))
}

func TestRedisSequencer(t *testing.T) {
	store := &fakeCounterStore{values: map[string]int64{}}
	gen, err := NewGenerator(NewRedisSequencer(store))
	require.NoError(t, err)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := gen.Generate(ctx, PrefixBackorder, at)
	require.NoError(t, err)
	second, err := gen.WithTx(nil).Generate(ctx, PrefixBackorder, at)
	require.NoError(t, err)

	assert.Equal(t, "BO-260301-0001", first)
	assert.Equal(t, "BO-260301-0002", second)
	assert.Equal(t, counterTTL, store.lastTTL)
	assert.Contains(t, store.values, "counter:BO:260301")

	store.err = errors.New("redis down")
	_, err = gen.Generate(ctx, PrefixBackorder, at)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

type fakeCounterStore struct {
	mu      sync.Mutex
	values  map[string]int64
	lastTTL time.Duration
	err     error
}

func (f *fakeCounterStore) CounterKey(name string) string {
	return "counter:" + name
}

func (f *fakeCounterStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.values[key]++
	f.lastTTL = ttl
	return f.values[key], nil
}
