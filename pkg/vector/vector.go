// Package vector provides the semantic long-term store: named collections of
// embedded text chunks with similarity search over them. Collections are
// created lazily per conversation; a cache-backed existence flag remembers
// which collections have been materialized.
package vector

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned when work is submitted to a stopped pool.
	ErrPoolClosed = errors.New("vector: worker pool is closed")
)

// Candidate is one similarity-search result. Distance is 1 - similarity, so
// smaller is closer.
type Candidate struct {
	Content  string
	Distance float64
}

// Collection is a handle to one named set of embedded chunks.
type Collection interface {
	// AddTexts embeds and stores the given chunks.
	AddTexts(ctx context.Context, texts []string) error

	// SimilaritySearch returns up to k nearest candidates for the query,
	// closest first.
	SimilaritySearch(ctx context.Context, query string, k int) ([]Candidate, error)
}

// Backend abstracts the vector database.
type Backend interface {
	// BuildCollection creates (or replaces) a collection from the given
	// chunks and returns a handle to it.
	BuildCollection(ctx context.Context, name string, texts []string) (Collection, error)

	// OpenCollection returns a handle to an existing collection. The second
	// return value reports whether the collection is present.
	OpenCollection(ctx context.Context, name string) (Collection, bool, error)

	// DropCollection removes a collection and its contents. Dropping an
	// absent collection is not an error.
	DropCollection(ctx context.Context, name string) error
}

// ChatCollection returns the collection name for one user/character
// conversation.
func ChatCollection(userID, characterID string) string {
	return fmt.Sprintf("chat_%s_%s", userID, characterID)
}

// SocialCollection returns the collection name for a character's shared
// social memory.
func SocialCollection(characterID string) string {
	return fmt.Sprintf("social_%s", characterID)
}
