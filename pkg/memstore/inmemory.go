package memstore

import (
	"context"
	"strings"
	"sync"
)

// InMemory is a Store kept entirely in process memory. It backs tests and
// single-node development runs; semantics match RemoteStore, including the
// window cap and archival of each appended batch into a searchable
// long-term list.
type InMemory struct {
	maxRecords int

	mu        sync.RWMutex
	windows   map[string][]Turn
	important map[string][]string
	archived  map[string][]string
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an in-process store with the given window cap.
func NewInMemory(maxRecords int) *InMemory {
	return &InMemory{
		maxRecords: maxRecords,
		windows:    make(map[string][]Turn),
		important:  make(map[string][]string),
		archived:   make(map[string][]string),
	}
}

func (s *InMemory) AppendTurns(ctx context.Context, userID, characterID string, turns []Turn, maxRecords int) error {
	if len(turns) == 0 {
		return nil
	}
	if maxRecords <= 0 {
		maxRecords = s.maxRecords
	}
	key := recentKey(userID, characterID)
	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.windows[key], turns...)
	if maxRecords > 0 && len(window) > maxRecords {
		window = window[len(window)-maxRecords:]
	}
	s.windows[key] = window

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.ArchiveLine())
	}
	s.archived[key] = append(s.archived[key], strings.Join(lines, "\n"))
	return nil
}

func (s *InMemory) ReadRecent(ctx context.Context, userID, characterID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	window, ok := s.windows[recentKey(userID, characterID)]
	if !ok {
		return nil, nil
	}
	out := make([]Turn, len(window))
	copy(out, window)
	return out, nil
}

// Recall does naive substring matching over archived lines. Good enough for
// tests and development; the remote store does real similarity search.
func (s *InMemory) Recall(ctx context.Context, userID, characterID, query string, k int, scoreThreshold float64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, line := range s.archived[recentKey(userID, characterID)] {
		if strings.Contains(strings.ToLower(line), strings.ToLower(query)) {
			out = append(out, line)
			if k > 0 && len(out) == k {
				break
			}
		}
	}
	return out, nil
}

func (s *InMemory) Forget(ctx context.Context, userID, characterID string) error {
	key := recentKey(userID, characterID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	delete(s.archived, key)
	delete(s.important, importantKey(userID, characterID))
	return nil
}

func (s *InMemory) ImportantMemories(ctx context.Context, userID, characterID string) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.important[importantKey(userID, characterID)]
	if !ok {
		return nil, false, nil
	}
	out := make([]string, len(entries))
	copy(out, entries)
	return out, true, nil
}

func (s *InMemory) SetImportantMemories(ctx context.Context, userID, characterID string, entries []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(entries))
	copy(cp, entries)
	s.important[importantKey(userID, characterID)] = cp
	return nil
}

func (s *InMemory) ForgetImportantMemories(ctx context.Context, userID, characterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.important, importantKey(userID, characterID))
	return nil
}
