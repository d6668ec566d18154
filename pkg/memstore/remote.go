package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/logger"
	"github.com/mnemo/mnemo/pkg/vector"
)

// archiveTimeout bounds one background archival push.
const archiveTimeout = 30 * time.Second

// KV is the cache surface the store needs.
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// LongTerm is the semantic tier surface the store needs. The vector manager
// satisfies this.
type LongTerm interface {
	SaveChat(ctx context.Context, userID, characterID string, texts []string) error
	SearchChats(ctx context.Context, userID, characterID, query string, k int, scoreThreshold float64) ([]vector.Candidate, error)
	DeleteChat(ctx context.Context, userID, characterID string) error
}

// RemoteStore implements Store over the cache and the vector tier. Archival
// of appended turns happens off the request path; Close drains in-flight
// archivals.
type RemoteStore struct {
	cache   KV
	vectors LongTerm
	cfg     config.MemoryConfig
	log     logger.Logger

	wg sync.WaitGroup
}

var _ Store = (*RemoteStore)(nil)

// NewRemoteStore creates the tiered store.
func NewRemoteStore(cache KV, vectors LongTerm, cfg config.MemoryConfig, log logger.Logger) *RemoteStore {
	return &RemoteStore{
		cache:   cache,
		vectors: vectors,
		cfg:     cfg,
		log:     log,
	}
}

func (s *RemoteStore) AppendTurns(ctx context.Context, userID, characterID string, turns []Turn, maxRecords int) error {
	if len(turns) == 0 {
		return nil
	}
	if maxRecords <= 0 {
		maxRecords = s.cfg.MaxRecords
	}
	now := time.Now().Unix()
	for i := range turns {
		if turns[i].Timestamp == 0 {
			turns[i].Timestamp = now
		}
	}

	window, err := s.readWindow(ctx, userID, characterID)
	if err != nil {
		return err
	}
	window = append(window, turns...)
	if maxRecords > 0 && len(window) > maxRecords {
		window = window[len(window)-maxRecords:]
	}

	if err := s.writeWindow(ctx, userID, characterID, window); err != nil {
		return err
	}
	s.archive(userID, characterID, turns)
	return nil
}

func (s *RemoteStore) ReadRecent(ctx context.Context, userID, characterID string) ([]Turn, error) {
	return s.readWindow(ctx, userID, characterID)
}

func (s *RemoteStore) Recall(ctx context.Context, userID, characterID, query string, k int, scoreThreshold float64) ([]string, error) {
	if k <= 0 {
		k = s.cfg.RecallK
	}
	candidates, err := s.vectors.SearchChats(ctx, userID, characterID, query, k, scoreThreshold)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Content)
	}
	return out, nil
}

func (s *RemoteStore) Forget(ctx context.Context, userID, characterID string) error {
	if err := s.cache.Delete(ctx, recentKey(userID, characterID)); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, importantKey(userID, characterID)); err != nil {
		return err
	}
	return s.vectors.DeleteChat(ctx, userID, characterID)
}

func (s *RemoteStore) ImportantMemories(ctx context.Context, userID, characterID string) ([]string, bool, error) {
	raw, found, err := s.cache.Get(ctx, importantKey(userID, characterID))
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false, fmt.Errorf("memstore: decode importance summary: %w", err)
	}
	return entries, true, nil
}

func (s *RemoteStore) SetImportantMemories(ctx context.Context, userID, characterID string, entries []string) error {
	if entries == nil {
		entries = []string{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("memstore: encode importance summary: %w", err)
	}
	return s.cache.Set(ctx, importantKey(userID, characterID), string(raw), 0)
}

func (s *RemoteStore) ForgetImportantMemories(ctx context.Context, userID, characterID string) error {
	return s.cache.Delete(ctx, importantKey(userID, characterID))
}

// Close waits for in-flight archivals to land.
func (s *RemoteStore) Close() {
	s.wg.Wait()
}

func (s *RemoteStore) readWindow(ctx context.Context, userID, characterID string) ([]Turn, error) {
	raw, found, err := s.cache.Get(ctx, recentKey(userID, characterID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var window []Turn
	if err := json.Unmarshal([]byte(raw), &window); err != nil {
		return nil, fmt.Errorf("memstore: decode recent window: %w", err)
	}
	return window, nil
}

func (s *RemoteStore) writeWindow(ctx context.Context, userID, characterID string, window []Turn) error {
	raw, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("memstore: encode recent window: %w", err)
	}
	return s.cache.Set(ctx, recentKey(userID, characterID), string(raw), 0)
}

// archive pushes an appended batch to the long-term tier off the request
// path. Failures are logged; the window write has already succeeded.
func (s *RemoteStore) archive(userID, characterID string, turns []Turn) {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.ArchiveLine())
	}
	doc := strings.Join(lines, "\n")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.vectors.SaveChat(ctx, userID, characterID, []string{doc}); err != nil {
			s.log.Error("Failed to archive appended turns",
				"user_id", userID, "character_id", characterID, "turns", len(turns), "error", err)
		}
	}()
}
