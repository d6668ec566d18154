// Package cache provides the resilient Redis connection manager that backs
// the recent-turn window, the importance summaries, and the collection
// existence flags.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/logger"
	"github.com/mnemo/mnemo/pkg/retry"
)

// ErrClosed is returned for operations on a closed manager.
var ErrClosed = errors.New("cache: manager is closed")

// client is the subset of redis.UniversalClient the manager needs. The seam
// exists so tests can substitute a scripted fake.
type client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// MetricsRecorder records cache operation outcomes.
type MetricsRecorder interface {
	RecordCacheOp(op, status string, duration time.Duration)
}

// Manager wraps a pooled Redis client with lazy one-time initialization,
// per-operation retry, and background health probing. go-redis hands out
// independent logical connections from its pool, so concurrent callers never
// share an in-flight command.
type Manager struct {
	cfg config.RedisConfig
	log logger.Logger

	initOnce sync.Once
	initErr  error
	client   client

	// dial builds the underlying client; tests override it.
	dial func() client

	initPolicy retry.Policy
	opPolicy   retry.Policy

	metrics MetricsRecorder

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager creates a cache manager. The underlying pool is not built until
// the first operation needs it.
func NewManager(cfg config.RedisConfig, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		log:    log,
		stopCh: make(chan struct{}),
		initPolicy: retry.Policy{
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2,
			Retryable:      isRetryable,
		},
		opPolicy: retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2,
			Retryable:      isRetryable,
		},
	}
	m.dial = func() client {
		return redis.NewClient(&redis.Options{
			Addr:        cfg.Address,
			Password:    cfg.Password,
			DB:          cfg.DB,
			PoolSize:    cfg.PoolSize,
			DialTimeout: cfg.DialTimeout,
			ReadTimeout: cfg.ReadTimeout,
		})
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initPolicy.OnRetry = m.logRetry("init")
	m.opPolicy.OnRetry = m.logRetry("op")
	return m
}

// getClient lazily builds the shared pool exactly once. Initialization races
// are serialized by the once guard; a failed initialization is sticky, which
// is fatal-startup semantics for everything above it.
func (m *Manager) getClient(ctx context.Context) (client, error) {
	m.initOnce.Do(func() {
		m.initErr = m.initPool(ctx)
	})
	if m.initErr != nil {
		return nil, m.initErr
	}
	return m.client, nil
}

// initPool builds and verifies the connection pool with bounded retry.
func (m *Manager) initPool(ctx context.Context) error {
	err := m.initPolicy.Do(ctx, func(ctx context.Context) error {
		c := m.dial()
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return err
		}
		m.client = c
		return nil
	})
	if err != nil {
		m.log.Error("Failed to initialize Redis connection pool", "error", err)
		return fmt.Errorf("cache: init pool: %w", err)
	}
	m.log.Info("Redis connection pool initialized", "address", m.cfg.Address, "pool_size", m.cfg.PoolSize)
	return nil
}

// Set stores a value with an optional TTL (ttl <= 0 means no expiry).
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c, err := m.getClient(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	err = m.opPolicy.Do(ctx, func(ctx context.Context) error {
		return c.Set(ctx, key, value, ttl).Err()
	})
	m.record("set", err, start)
	if err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Get fetches a value. Absence is not an error: it is reported through the
// second return value.
func (m *Manager) Get(ctx context.Context, key string) (string, bool, error) {
	c, err := m.getClient(ctx)
	if err != nil {
		return "", false, err
	}
	var (
		val   string
		found bool
	)
	start := time.Now()
	err = m.opPolicy.Do(ctx, func(ctx context.Context) error {
		v, err := c.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		val, found = v, true
		return nil
	})
	m.record("get", err, start)
	if err != nil {
		return "", false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, found, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (m *Manager) Delete(ctx context.Context, key string) error {
	c, err := m.getClient(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	err = m.opPolicy.Do(ctx, func(ctx context.Context) error {
		return c.Del(ctx, key).Err()
	})
	m.record("del", err, start)
	if err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// HealthCheck reports pool liveness. It never returns an error and never
// tears down the pool on failure.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	c, err := m.getClient(ctx)
	if err != nil {
		m.log.Error("Redis health check failed", "error", err)
		return false
	}
	if err := c.Ping(ctx).Err(); err != nil {
		m.log.Error("Redis health check failed", "error", err)
		return false
	}
	return true
}

// StartHealthProbe launches the background health probe. The probe runs until
// the context is cancelled or Close is called.
func (m *Manager) StartHealthProbe(ctx context.Context) {
	interval := m.cfg.ProbeInterval
	if interval <= 0 {
		interval = 300 * time.Second
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if m.HealthCheck(probeCtx) {
					m.log.Info("Redis health check passed")
				} else {
					m.log.Error("Redis health check failed")
				}
				cancel()
			}
		}
	}()
}

// Close stops background probes and releases the pool.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return err
		}
		m.log.Info("Redis connection pool closed")
	}
	return nil
}

func (m *Manager) record(op string, err error, start time.Time) {
	if m.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordCacheOp(op, status, time.Since(start))
}

func (m *Manager) logRetry(scope string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		m.log.Warn("Retrying Redis "+scope, "attempt", attempt, "delay", delay, "error", err)
	}
}

// isRetryable classifies Redis errors worth another attempt. Key misses and
// serialization problems are data conditions, never retried.
func isRetryable(err error) bool {
	if errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	return retry.IsTransient(err)
}
