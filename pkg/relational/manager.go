// Package relational manages the pooled SQL connection used by ancillary
// persistence. The pool is recycled wholesale on a timer and every checkout
// can be pre-validated, so callers never see a stale server-side connection.
package relational

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/logger"
	"github.com/mnemo/mnemo/pkg/retry"
)

// ErrDisabled is returned when the relational layer is turned off in config.
var ErrDisabled = errors.New("relational: database is disabled")

// MetricsRecorder records SQL operation outcomes.
type MetricsRecorder interface {
	RecordSQLOp(status string, duration time.Duration)
}

// Manager owns the pgx connection pool. Initialization is lazy and happens
// exactly once; Recycle swaps in a fresh pool without interrupting callers
// holding connections from the old one.
type Manager struct {
	cfg config.DatabaseConfig
	log logger.Logger

	initOnce sync.Once
	initErr  error

	mu   sync.RWMutex
	pool *pgxpool.Pool

	initPolicy retry.Policy
	txPolicy   retry.Policy

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

// NewManager creates a relational manager. No connections are opened until
// the first operation or WarmUp.
func NewManager(cfg config.DatabaseConfig, log logger.Logger, opts ...Option) *Manager {
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
		txPolicy: retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2,
			Retryable:      isRetryable,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initPolicy.OnRetry = m.logRetry("pool init")
	m.txPolicy.OnRetry = m.logRetry("transaction")
	return m
}

// poolConfig translates the database settings into a pgxpool configuration.
func (m *Manager) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(m.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("relational: parse database url: %w", err)
	}
	pc.MinConns = int32(m.cfg.PoolSize)
	pc.MaxConns = int32(m.cfg.PoolSize + m.cfg.MaxOverflow)
	if m.cfg.RecycleAge > 0 {
		pc.MaxConnLifetime = m.cfg.RecycleAge
	}
	if m.cfg.PrePing {
		pc.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
			return conn.Ping(ctx) == nil
		}
	}
	return pc, nil
}

func (m *Manager) getPool(ctx context.Context) (*pgxpool.Pool, error) {
	if !m.cfg.Enabled {
		return nil, ErrDisabled
	}
	m.initOnce.Do(func() {
		m.initErr = m.initPool(ctx)
	})
	if m.initErr != nil {
		return nil, m.initErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool, nil
}

func (m *Manager) initPool(ctx context.Context) error {
	pc, err := m.poolConfig()
	if err != nil {
		return err
	}
	err = m.initPolicy.Do(ctx, func(ctx context.Context) error {
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return err
		}
		m.mu.Lock()
		m.pool = pool
		m.mu.Unlock()
		return nil
	})
	if err != nil {
		m.log.Error("Failed to initialize database connection pool", "error", err)
		return fmt.Errorf("relational: init pool: %w", err)
	}
	m.log.Info("Database connection pool initialized",
		"pool_size", m.cfg.PoolSize, "max_overflow", m.cfg.MaxOverflow)
	return nil
}

// WarmUp builds the pool and verifies it with a probe query. Callers treat a
// warm-up failure as fatal at startup.
func (m *Manager) WarmUp(ctx context.Context) error {
	pool, err := m.getPool(ctx)
	if err != nil {
		return err
	}
	var one int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("relational: warm-up probe: %w", err)
	}
	return nil
}

// ExecuteWithRetry runs fn inside a transaction with bounded retry. Every
// failed attempt is rolled back before the next begins, so a retried fn
// always sees a clean transaction.
func (m *Manager) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	pool, err := m.getPool(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	err = m.txPolicy.Do(ctx, func(ctx context.Context) error {
		attemptCtx := ctx
		if m.cfg.PoolTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, m.cfg.PoolTimeout)
			defer cancel()
		}
		tx, err := pool.Begin(attemptCtx)
		if err != nil {
			return err
		}
		if err := fn(attemptCtx, tx); err != nil {
			_ = tx.Rollback(attemptCtx)
			return err
		}
		return tx.Commit(attemptCtx)
	})
	m.record(err, start)
	if err != nil {
		return fmt.Errorf("relational: execute: %w", err)
	}
	return nil
}

// HealthCheck reports pool liveness. It never returns an error.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	if !m.cfg.Enabled {
		return true
	}
	pool, err := m.getPool(ctx)
	if err != nil {
		m.log.Error("Database health check failed", "error", err)
		return false
	}
	if err := pool.Ping(ctx); err != nil {
		m.log.Error("Database health check failed", "error", err)
		return false
	}
	return true
}

// Recycle replaces the pool with a freshly built one. Connections checked
// out from the old pool finish their work; the old pool closes once they
// are returned.
func (m *Manager) Recycle(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}
	pc, err := m.poolConfig()
	if err != nil {
		return err
	}
	fresh, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return fmt.Errorf("relational: recycle: %w", err)
	}
	if err := fresh.Ping(ctx); err != nil {
		fresh.Close()
		return fmt.Errorf("relational: recycle probe: %w", err)
	}
	m.mu.Lock()
	old := m.pool
	m.pool = fresh
	m.mu.Unlock()
	if old != nil {
		go old.Close()
	}
	m.log.Info("Database connection pool recycled")
	return nil
}

// StartRecycler launches the periodic pool rebuild.
func (m *Manager) StartRecycler(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}
	interval := m.cfg.RecycleInterval
	if interval <= 0 {
		interval = time.Hour
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
				recycleCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := m.Recycle(recycleCtx); err != nil {
					m.log.Error("Database pool recycle failed", "error", err)
				}
				cancel()
			}
		}
	}()
}

// StartHealthProbe launches the background health probe.
func (m *Manager) StartHealthProbe(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}
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
					m.log.Info("Database health check passed")
				} else {
					m.log.Error("Database health check failed")
				}
				cancel()
			}
		}
	}()
}

// Close stops background work and drains the pool.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
		m.log.Info("Database connection pool closed")
	}
	return nil
}

func (m *Manager) record(err error, start time.Time) {
	if m.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordSQLOp(status, time.Since(start))
}

func (m *Manager) logRetry(scope string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		m.log.Warn("Retrying database "+scope, "attempt", attempt, "delay", delay, "error", err)
	}
}

// isRetryable classifies database errors worth another attempt. Serialization
// failures and deadlocks are safe to rerun because the attempt was rolled
// back; constraint and syntax errors never are.
func isRetryable(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		case "57P03", "08006", "08001": // cannot_connect_now, connection failures
			return true
		}
		return false
	}
	return retry.IsTransient(err)
}
