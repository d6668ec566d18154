package consolidate

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mnemo/mnemo/config"
)

// OpenAIReasoner invokes an OpenAI-compatible chat model.
type OpenAIReasoner struct {
	client    *openai.Client
	model     string
	maxTokens int
}

var _ Reasoner = (*OpenAIReasoner)(nil)

// NewOpenAIReasoner builds a reasoner from the consolidation settings.
func NewOpenAIReasoner(cfg config.ConsolidationConfig) *OpenAIReasoner {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIReasoner{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Complete runs one chat completion in JSON mode and returns the raw
// response text.
func (r *OpenAIReasoner) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		// Temperature is omitempty, so a literal 0 would fall back to the
		// API default. The smallest nonzero value survives marshalling.
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("consolidate: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("consolidate: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
