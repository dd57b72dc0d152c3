// Package llm wraps the generative model SDK behind a small completion
// interface so the classifier and decomposer can be tested without network
// access.
package llm

import (
	"context"
	"fmt"
	"time"

	"dirigent/internal/config"
	"dirigent/internal/logging"

	"google.golang.org/genai"
)

// Client is the completion surface the rest of the system depends on.
type Client interface {
	// Complete sends a single-turn prompt and returns the model's text.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with a system instruction.
	CompleteWithSystem(ctx context.Context, system, user string) (string, error)

	// Close releases the underlying connection.
	Close() error
}

// GenAIClient implements Client over the Gemini SDK.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient connects to the Gemini API using the configured key and
// model name.
func NewGenAIClient(ctx context.Context, cfg config.ModelConfig) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	logging.API("genai client created (model=%s)", model)
	return &GenAIClient{client: client, model: model}, nil
}

func (g *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, nil, prompt)
}

func (g *GenAIClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: system}},
			},
		}
	}
	return g.generate(ctx, cfg, user)
}

func (g *GenAIClient) generate(ctx context.Context, cfg *genai.GenerateContentConfig, prompt string) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "GenerateContent")
	defer timer.StopWithThreshold(2 * time.Second)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, cfg)
	if err != nil {
		logging.Get(logging.CategoryAPI).Warn("generation failed: %v", err)
		return "", fmt.Errorf("model call failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return text, nil
}

// Close releases the underlying connection. Safe to call on a nil receiver.
func (g *GenAIClient) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return nil
}
