package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions tunes redsync mutexes.
type RedisOptions struct {
	Prefix      string
	Expiry      time.Duration
	Tries       int
	RetryDelay  time.Duration
	DriftFactor float64
}

// DefaultRedisOptions returns conservative options for transaction locks.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:      "assetflow:lock:",
		Expiry:      10 * time.Second,
		Tries:       32,
		RetryDelay:  50 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

// Redis is a distributed Locker backed by redsync.
type Redis struct {
	rs     *redsync.Redsync
	opts   RedisOptions
	logger *zap.Logger
}

// NewRedis builds a redsync locker over client.
func NewRedis(client goredislib.UniversalClient, opts RedisOptions, logger *zap.Logger) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	defaults := DefaultRedisOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = defaults.Expiry
	}
	if opts.Tries < 1 {
		opts.Tries = defaults.Tries
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = defaults.RetryDelay
	}
	if opts.RetryDelay < 0 {
		return nil, errors.New("lock retry delay cannot be negative")
	}
	if opts.DriftFactor < 0 || opts.DriftFactor >= 1 {
		return nil, errors.New("lock drift factor must be in [0, 1)")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}, nil
}

// WithLock implements Locker.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if err := validate(key, fn); err != nil {
		return err
	}
	name := r.opts.Prefix + key
	mutex := r.rs.NewMutex(name,
		redsync.WithExpiry(r.opts.Expiry),
		redsync.WithTries(r.opts.Tries),
		redsync.WithRetryDelay(r.opts.RetryDelay),
		redsync.WithDriftFactor(r.opts.DriftFactor),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotAcquired, name, err)
	}
	defer func() {
		// Release on a fresh context so a cancelled request still unlocks.
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			r.logger.Warn("release lock failed", zap.String("lock_key", name), zap.Bool("unlock_ok", ok), zap.Error(err))
		}
	}()

	held, lost := context.WithCancelCause(ctx)
	defer lost(nil)
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		r.keepAlive(held, lost, stop, name, mutex)
	}()
	defer func() {
		close(stop)
		<-stopped
	}()
	return fn(held)
}

// keepAlive extends mutex every third of its expiry until the holder returns,
// even after the caller's context ends. When an extension fails the holder's
// context is cancelled with ErrLockLost.
func (r *Redis) keepAlive(ctx context.Context, lost context.CancelCauseFunc, stop <-chan struct{}, name string, mutex *redsync.Mutex) {
	interval := r.opts.Expiry / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		extendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interval)
		ok, err := mutex.ExtendContext(extendCtx)
		cancel()
		if ok && err == nil {
			continue
		}
		r.logger.Error("lock extension failed", zap.String("lock_key", name), zap.Bool("extend_ok", ok), zap.Error(err))
		lost(fmt.Errorf("%w: %s", ErrLockLost, name))
		return
	}
}
