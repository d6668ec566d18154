// Package chromem implements the vector backend on the embedded chromem-go
// database with OpenAI-compatible embeddings.
package chromem

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/vector"
)

// addConcurrency bounds parallel embedding calls within one batch. The
// manager's worker pool already bounds batches.
const addConcurrency = 4

// Backend stores collections in chromem-go, either in memory or persisted
// under a directory.
type Backend struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc
}

var _ vector.Backend = (*Backend)(nil)

// NewBackend opens the database at cfg.Path, or in memory when the path is
// empty, and wires the embedding provider.
func NewBackend(cfg config.VectorConfig) (*Backend, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, true)
		if err != nil {
			return nil, fmt.Errorf("chromem: open %s: %w", cfg.Path, err)
		}
	}
	return &Backend{
		db:    db,
		embed: newEmbeddingFunc(cfg.Embedding),
	}, nil
}

// newEmbeddingFunc builds a chromem embedding function on the OpenAI
// embeddings API.
func newEmbeddingFunc(cfg config.EmbeddingConfig) chromem.EmbeddingFunc {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)
	model := openai.EmbeddingModel(cfg.Model)
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: model,
		})
		if err != nil {
			return nil, fmt.Errorf("chromem: embed: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, errors.New("chromem: embedding response is empty")
		}
		return resp.Data[0].Embedding, nil
	}
}

// BuildCollection replaces any existing collection of the same name.
func (b *Backend) BuildCollection(ctx context.Context, name string, texts []string) (vector.Collection, error) {
	if err := b.db.DeleteCollection(name); err != nil {
		return nil, fmt.Errorf("chromem: replace collection %s: %w", name, err)
	}
	col, err := b.db.CreateCollection(name, nil, b.embed)
	if err != nil {
		return nil, fmt.Errorf("chromem: create collection %s: %w", name, err)
	}
	c := &collection{col: col}
	if err := c.AddTexts(ctx, texts); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenCollection returns a handle to an existing collection, reporting
// absence through the second return value.
func (b *Backend) OpenCollection(ctx context.Context, name string) (vector.Collection, bool, error) {
	col := b.db.GetCollection(name, b.embed)
	if col == nil {
		return nil, false, nil
	}
	return &collection{col: col}, true, nil
}

// DropCollection removes the collection. Absence is not an error.
func (b *Backend) DropCollection(ctx context.Context, name string) error {
	if err := b.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("chromem: drop collection %s: %w", name, err)
	}
	return nil
}

// collection adapts a chromem collection to the vector.Collection interface.
type collection struct {
	col *chromem.Collection
}

func (c *collection) AddTexts(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(texts))
	for _, t := range texts {
		docs = append(docs, chromem.Document{
			ID:      uuid.NewString(),
			Content: t,
		})
	}
	if err := c.col.AddDocuments(ctx, docs, addConcurrency); err != nil {
		return fmt.Errorf("chromem: add documents: %w", err)
	}
	return nil
}

func (c *collection) SimilaritySearch(ctx context.Context, query string, k int) ([]vector.Candidate, error) {
	// chromem rejects result counts beyond the stored document count
	if n := c.col.Count(); n < k {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	results, err := c.col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}
	candidates := make([]vector.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, vector.Candidate{
			Content:  r.Content,
			Distance: 1 - float64(r.Similarity),
		})
	}
	return candidates, nil
}
