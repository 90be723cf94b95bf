package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

// Locker serialises runs for one sales order across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}

// NoopLocker is used when no distributed lock is configured; the database
// row lock still serialises runs in atomic mode.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// LocalLocker serialises runs for one sales order within this process. It
// is the default in stepwise mode, where no row lock spans the run.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	held chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

// Lock waits for key until ctx is done, then gives up with LOCKED.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &localLock{held: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.held <- struct{}{}:
	case <-ctx.Done():
		l.forget(key, entry)
		return nil, pkgerrors.Wrap(pkgerrors.CodeLocked, ctx.Err(), "sales order is being fulfilled by another request")
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-entry.held
			l.forget(key, entry)
		})
		return nil
	}, nil
}

func (l *LocalLocker) forget(key string, entry *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}

type lockClient interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

type keyBuilder interface {
	LockKey(scope, id string) string
}

// RedisLocker holds a redislock lease for the duration of a run.
type RedisLocker struct {
	client lockClient
	keys   keyBuilder
	ttl    time.Duration
	wait   time.Duration
}

const lockRetryInterval = 100 * time.Millisecond

// NewRedisLocker builds a locker; wait bounds how long Lock retries before
// giving up with LOCKED.
func NewRedisLocker(client lockClient, keys keyBuilder, ttl, wait time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redislock client required")
	}
	if keys == nil {
		return nil, fmt.Errorf("lock key builder required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	return &RedisLocker{client: client, keys: keys, ttl: ttl, wait: wait}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	retries := int(l.wait / lockRetryInterval)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryInterval), retries),
	}
	lock, err := l.client.Obtain(ctx, l.keys.LockKey("sales_order", key), l.ttl, opts)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, pkgerrors.New(pkgerrors.CodeLocked, "sales order is being fulfilled by another request")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "obtain sales order lock")
	}
	return lock.Release, nil
}
