// Package llm provides the chat model client used for classification,
// query rewriting, contextual compression, and answer generation.
//
// Every call site gets the same well-defined result shape: a plain text
// string, either returned whole or delivered incrementally through a
// TokenFunc while still returning the full text.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// TokenFunc receives tokens as they are generated. Returning an error
// stops the stream.
type TokenFunc func(token string) error

// Client is the contract the rest of finrag consumes.
type Client interface {
	// Complete generates text for the prompt in a single shot.
	Complete(ctx context.Context, prompt string) (string, error)
	// Stream generates text for the prompt, delivering tokens through fn
	// as they are produced, and returns the full generated text.
	Stream(ctx context.Context, prompt string, fn TokenFunc) (string, error)
}

// Config holds chat model configuration.
type Config struct {
	// BaseURL is any OpenAI-compatible endpoint (OpenAI, DeepSeek, vLLM, ...).
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAIClient implements Client over an OpenAI-compatible chat API.
type OpenAIClient struct {
	model llms.Model
}

// New creates a chat model client.
func New(cfg Config) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for keyless local endpoints.
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat model client: %w", err)
	}

	return &OpenAIClient{model: model}, nil
}

// Complete generates text for the prompt in a single shot.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return text, nil
}

// Stream generates text for the prompt, delivering tokens through fn.
func (c *OpenAIClient) Stream(ctx context.Context, prompt string, fn TokenFunc) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return fn(string(chunk))
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating streamed completion: %w", err)
	}
	return text, nil
}

var _ Client = (*OpenAIClient)(nil)
