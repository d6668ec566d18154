package vector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/logger"
)

// flagValue marks a collection as materialized in the flag store.
const flagValue = "1"

// FlagStore persists collection existence flags. The cache manager satisfies
// this.
type FlagStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// MetricsRecorder records vector operation outcomes.
type MetricsRecorder interface {
	RecordVectorOp(op, status string, duration time.Duration)
}

// Manager coordinates lazy collection creation, the existence flags, and the
// bounded worker pool in front of the backend.
type Manager struct {
	cfg     config.VectorConfig
	backend Backend
	flags   FlagStore
	pool    *Pool
	log     logger.Logger
	metrics MetricsRecorder

	// mu serializes create-vs-append decisions per manager. Backends are
	// safe for concurrent reads; the race worth excluding is two writers
	// both deciding to build the same collection.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager creates a vector manager with its worker pool started.
func NewManager(cfg config.VectorConfig, backend Backend, flags FlagStore, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		backend: backend,
		flags:   flags,
		pool:    NewPool(cfg.MaxWorkers),
		log:     log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Upsert chunks the texts and stores them under the named collection. The
// first write builds the collection; later writes append. With dropOld the
// existing collection is discarded and rebuilt from only these texts. A flag
// that has outlived its backing data triggers a fresh build instead of a
// lost write.
func (m *Manager) Upsert(ctx context.Context, name string, texts []string, chunkSize int, dropOld bool) error {
	chunks := splitAll(texts, chunkSize)
	if len(chunks) == 0 {
		return nil
	}
	start := time.Now()
	err := m.pool.Do(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		_, flagged, err := m.flags.Get(ctx, name)
		if err != nil {
			return err
		}
		if flagged && !dropOld {
			col, ok, err := m.backend.OpenCollection(ctx, name)
			if err != nil {
				return err
			}
			if ok {
				return col.AddTexts(ctx, chunks)
			}
			m.log.Warn("Collection flag is stale, rebuilding", "collection", name)
		}
		if _, err := m.backend.BuildCollection(ctx, name, chunks); err != nil {
			return err
		}
		return m.flags.Set(ctx, name, flagValue, 0)
	})
	m.record("upsert", err, start)
	if err != nil {
		return fmt.Errorf("vector: upsert %s: %w", name, err)
	}
	return nil
}

// Search returns candidates for the query whose distance beats the score
// threshold, preserving the backend's closest-first order. A collection that
// was never materialized yields no candidates and no error.
func (m *Manager) Search(ctx context.Context, name, query string, k int, scoreThreshold float64) ([]Candidate, error) {
	var out []Candidate
	start := time.Now()
	err := m.pool.Do(ctx, func(ctx context.Context) error {
		col, ok, err := m.backend.OpenCollection(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		candidates, err := col.SimilaritySearch(ctx, query, k)
		if err != nil {
			return err
		}
		cutoff := 1 - scoreThreshold
		for _, c := range candidates {
			if c.Distance < cutoff {
				out = append(out, c)
			}
		}
		return nil
	})
	m.record("search", err, start)
	if err != nil {
		return nil, fmt.Errorf("vector: search %s: %w", name, err)
	}
	return out, nil
}

// Delete drops the collection and clears its existence flag.
func (m *Manager) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := m.pool.Do(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if err := m.backend.DropCollection(ctx, name); err != nil {
			return err
		}
		return m.flags.Delete(ctx, name)
	})
	m.record("delete", err, start)
	if err != nil {
		return fmt.Errorf("vector: delete %s: %w", name, err)
	}
	return nil
}

// SaveChat appends conversation texts to the per-conversation collection.
func (m *Manager) SaveChat(ctx context.Context, userID, characterID string, texts []string) error {
	return m.Upsert(ctx, ChatCollection(userID, characterID), texts, m.cfg.ChatChunkSize, false)
}

// SaveSocial replaces a character's shared social facts. Social documents
// describe current state, so each save rebuilds the collection.
func (m *Manager) SaveSocial(ctx context.Context, characterID string, texts []string) error {
	return m.Upsert(ctx, SocialCollection(characterID), texts, m.cfg.SocialChunkSize, true)
}

// SearchChats recalls conversation chunks relevant to the query.
func (m *Manager) SearchChats(ctx context.Context, userID, characterID, query string, k int, scoreThreshold float64) ([]Candidate, error) {
	return m.Search(ctx, ChatCollection(userID, characterID), query, k, scoreThreshold)
}

// SearchSocial recalls social facts relevant to the query.
func (m *Manager) SearchSocial(ctx context.Context, characterID, query string, k int, scoreThreshold float64) ([]Candidate, error) {
	return m.Search(ctx, SocialCollection(characterID), query, k, scoreThreshold)
}

// DeleteChat removes one conversation's long-term memory.
func (m *Manager) DeleteChat(ctx context.Context, userID, characterID string) error {
	return m.Delete(ctx, ChatCollection(userID, characterID))
}

// DeleteSocial removes a character's shared social memory.
func (m *Manager) DeleteSocial(ctx context.Context, characterID string) error {
	return m.Delete(ctx, SocialCollection(characterID))
}

// Close stops the worker pool.
func (m *Manager) Close() {
	m.pool.Close()
}

func (m *Manager) record(op string, err error, start time.Time) {
	if m.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordVectorOp(op, status, time.Since(start))
}
