package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/vector"
)

type fakeSocialStore struct {
	saved   map[string][]string
	deleted []string
	results []vector.Candidate
	lastK   int
}

func newFakeSocialStore() *fakeSocialStore {
	return &fakeSocialStore{saved: make(map[string][]string)}
}

func (f *fakeSocialStore) SaveSocial(ctx context.Context, characterID string, texts []string) error {
	f.saved[characterID] = append(f.saved[characterID], texts...)
	return nil
}

func (f *fakeSocialStore) SearchSocial(ctx context.Context, characterID, query string, k int, scoreThreshold float64) ([]vector.Candidate, error) {
	f.lastK = k
	return f.results, nil
}

func (f *fakeSocialStore) DeleteSocial(ctx context.Context, characterID string) error {
	f.deleted = append(f.deleted, characterID)
	return nil
}

func socialRouter(store *fakeSocialStore) chi.Router {
	h := NewSocialHandler(store, config.MemoryConfig{RecallK: 3, ScoreThreshold: 0.6}, &nopLogger{})
	r := chi.NewRouter()
	r.Route("/api/v1/social/{characterID}", func(r chi.Router) {
		r.Post("/", h.Save)
		r.Post("/search", h.Search)
		r.Delete("/", h.Delete)
	})
	return r
}

func TestSaveSocial(t *testing.T) {
	store := newFakeSocialStore()
	r := socialRouter(store)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/social/c1/", map[string]any{
		"texts": []string{"Aria runs the night desk", "Aria dislikes loud rooms"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, store.saved["c1"], 2)
}

func TestSaveSocialValidation(t *testing.T) {
	r := socialRouter(newFakeSocialStore())

	rec := doJSON(t, r, http.MethodPost, "/api/v1/social/c1/", map[string]any{
		"texts": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchSocialDefaultsK(t *testing.T) {
	store := newFakeSocialStore()
	store.results = []vector.Candidate{{Content: "night desk", Distance: 0.2}}
	r := socialRouter(store)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/social/c1/search", map[string]any{
		"query": "desk",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, store.lastK)

	var out recallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"night desk"}, out.Results)
}

func TestDeleteSocial(t *testing.T) {
	store := newFakeSocialStore()
	r := socialRouter(store)

	rec := doJSON(t, r, http.MethodDelete, "/api/v1/social/c1/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"c1"}, store.deleted)
}
