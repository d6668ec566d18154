// Package consolidate runs the importance-memory pipeline: it gathers every
// memory tier for a conversation, asks a reasoning model to rewrite the
// importance summary, and persists the result. Model trouble never loses
// memories; the prior summary survives any failed run.
package consolidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/logger"
	"github.com/mnemo/mnemo/pkg/memstore"
	"github.com/mnemo/mnemo/pkg/retry"
	"github.com/mnemo/mnemo/pkg/vector"
)

// Reasoner invokes the reasoning model.
type Reasoner interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// SocialSearcher retrieves shared character facts. The vector manager
// satisfies this.
type SocialSearcher interface {
	SearchSocial(ctx context.Context, characterID, query string, k int, scoreThreshold float64) ([]vector.Candidate, error)
}

// Request describes one consolidation run.
type Request struct {
	UserID        string
	CharacterID   string
	CharacterName string
	Persona       string
	Exchange      Exchange
}

// Pipeline wires the memory tiers to the reasoning model.
type Pipeline struct {
	store    memstore.Store
	social   SocialSearcher // may be nil
	reasoner Reasoner
	cfg      config.ConsolidationConfig
	memCfg   config.MemoryConfig
	log      logger.Logger

	policy retry.Policy
	now    func() time.Time
}

// NewPipeline creates the consolidation pipeline.
func NewPipeline(store memstore.Store, social SocialSearcher, reasoner Reasoner, cfg config.ConsolidationConfig, memCfg config.MemoryConfig, log logger.Logger) *Pipeline {
	p := &Pipeline{
		store:    store,
		social:   social,
		reasoner: reasoner,
		cfg:      cfg,
		memCfg:   memCfg,
		log:      log,
		now:      time.Now,
	}
	p.policy = retry.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
		Multiplier:     1,
		Retryable: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn("Retrying reasoning model call", "attempt", attempt, "delay", delay, "error", err)
		},
	}
	return p
}

// modelOutput is the shape the reasoning model must return.
type modelOutput struct {
	UpdatedImportantMemories []string `json:"updated_important_memories"`
}

// Run executes one consolidation. Failures reading or writing the memory
// tiers propagate; failures of the model itself fall back to the prior
// summary, which is returned unchanged.
func (p *Pipeline) Run(ctx context.Context, req Request) ([]string, error) {
	prior, hadPrior, err := p.store.ImportantMemories(ctx, req.UserID, req.CharacterID)
	if err != nil {
		return nil, fmt.Errorf("consolidate: load summary: %w", err)
	}
	recent, err := p.store.ReadRecent(ctx, req.UserID, req.CharacterID)
	if err != nil {
		return nil, fmt.Errorf("consolidate: load recent window: %w", err)
	}
	long, err := p.store.Recall(ctx, req.UserID, req.CharacterID, req.Exchange.Question, p.memCfg.RecallK, p.memCfg.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("consolidate: recall long history: %w", err)
	}
	var socialFacts []string
	if p.social != nil {
		candidates, err := p.social.SearchSocial(ctx, req.CharacterID, req.Exchange.Question, p.memCfg.RecallK, p.memCfg.ScoreThreshold)
		if err != nil {
			return nil, fmt.Errorf("consolidate: search social facts: %w", err)
		}
		for _, c := range candidates {
			socialFacts = append(socialFacts, c.Content)
		}
	}

	priorText := "None"
	if hadPrior {
		priorText = marshalEntries(prior)
	}

	system := systemPrompt(req.CharacterName, req.Persona, p.cfg.MaxEntries)
	user := userPrompt(promptInput{
		CharacterName: req.CharacterName,
		Persona:       req.Persona,
		PriorMemories: priorText,
		RecentHistory: formatTurns(recent),
		SocialFacts:   strings.Join(socialFacts, "\n"),
		LongHistory:   strings.Join(long, "\n"),
		Exchange:      req.Exchange,
		Now:           p.now(),
	}, p.cfg.MaxEntries)

	entries, err := p.invoke(ctx, system, user)
	if err != nil {
		p.log.Error("Consolidation failed, keeping prior summary",
			"user_id", req.UserID, "character_id", req.CharacterID, "error", err)
		if !hadPrior {
			return nil, nil
		}
		if err := p.store.SetImportantMemories(ctx, req.UserID, req.CharacterID, prior); err != nil {
			return nil, fmt.Errorf("consolidate: restore summary: %w", err)
		}
		return prior, nil
	}

	if len(entries) > p.cfg.MaxEntries {
		p.log.Warn("Model exceeded the summary cap, truncating",
			"entries", len(entries), "cap", p.cfg.MaxEntries)
		entries = entries[:p.cfg.MaxEntries]
	}
	if err := p.store.SetImportantMemories(ctx, req.UserID, req.CharacterID, entries); err != nil {
		return nil, fmt.Errorf("consolidate: persist summary: %w", err)
	}
	return entries, nil
}

// invoke calls the model with bounded retry and a per-attempt timeout, then
// parses the JSON it returns.
func (p *Pipeline) invoke(ctx context.Context, system, user string) ([]string, error) {
	var entries []string
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		attemptCtx := ctx
		if p.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.cfg.AttemptTimeout)
			defer cancel()
		}
		raw, err := p.reasoner.Complete(attemptCtx, system, user)
		if err != nil {
			return err
		}
		parsed, err := parseOutput(raw)
		if err != nil {
			return err
		}
		entries = parsed
		return nil
	})
	return entries, err
}

// parseOutput decodes the model response, tolerating markdown code fences.
func parseOutput(raw string) ([]string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out modelOutput
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("consolidate: parse model output: %w", err)
	}
	if out.UpdatedImportantMemories == nil {
		return nil, errors.New("consolidate: model output is missing updated_important_memories")
	}
	return out.UpdatedImportantMemories, nil
}

func marshalEntries(entries []string) string {
	if entries == nil {
		entries = []string{}
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func formatTurns(turns []memstore.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.ArchiveLine())
	}
	return strings.Join(lines, "\n")
}
