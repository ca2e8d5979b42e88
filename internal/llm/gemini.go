package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no Gemini model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider talks to Google's Gemini API through the genai SDK.
type GeminiProvider struct {
	Model  string
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, model, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiProvider{Model: model, client: client}, nil
}

// Name identifies the provider in logs and the run ledger.
func (g *GeminiProvider) Name() string { return "gemini:" + g.Model }

// Complete sends system messages as the system instruction and the rest as
// one user turn.
func (g *GeminiProvider) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	var system, user []*genai.Part
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, genai.NewPartFromText(m.Content))
			continue
		}
		user = append(user, genai.NewPartFromText(m.Content))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: int32(maxTokens),
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: user}}
	resp, err := g.client.Models.GenerateContent(ctx, g.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoChoices
	}
	return resp.Text(), nil
}
