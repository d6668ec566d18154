// Package memstore exposes the tiered conversational memory: a bounded
// recent-turn window in the cache, a semantic long-term store behind it, and
// the per-conversation importance summary.
package memstore

import (
	"context"
	"fmt"
)

// Turn is one conversational message.
type Turn struct {
	Timestamp int64  `json:"time"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// ArchiveLine renders the turn in the line format stored in the long-term
// tier.
func (t Turn) ArchiveLine() string {
	return fmt.Sprintf("time:%d, role:%s, content:%s", t.Timestamp, t.Role, t.Content)
}

// Store is the tiered memory interface.
type Store interface {
	// AppendTurns merges turns onto a conversation's recent window,
	// truncates it to the last maxRecords entries (0 means the configured
	// default), and pushes the appended batch to the long-term tier.
	AppendTurns(ctx context.Context, userID, characterID string, turns []Turn, maxRecords int) error

	// ReadRecent returns the recent window, oldest first. A never-written
	// window is nil, not an error.
	ReadRecent(ctx context.Context, userID, characterID string) ([]Turn, error)

	// Recall searches the conversation's long-term tier.
	Recall(ctx context.Context, userID, characterID, query string, k int, scoreThreshold float64) ([]string, error)

	// Forget removes the recent window, the importance summary, and the
	// long-term collection for one conversation.
	Forget(ctx context.Context, userID, characterID string) error

	// ImportantMemories returns the importance summary. The second return
	// value reports whether a summary has ever been written.
	ImportantMemories(ctx context.Context, userID, characterID string) ([]string, bool, error)

	// SetImportantMemories replaces the importance summary.
	SetImportantMemories(ctx context.Context, userID, characterID string, entries []string) error

	// ForgetImportantMemories removes the importance summary.
	ForgetImportantMemories(ctx context.Context, userID, characterID string) error
}

// recentKey is the cache key for a conversation's recent window.
func recentKey(userID, characterID string) string {
	return fmt.Sprintf("recent_%s_%s", userID, characterID)
}

// importantKey is the cache key for a conversation's importance summary.
func importantKey(userID, characterID string) string {
	return fmt.Sprintf("important_%s_%s", userID, characterID)
}
