package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoChoices is returned when a provider answers without any completion.
var ErrNoChoices = errors.New("no choices in model response")

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one role-tagged block of a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the interface for LLM providers.
type Provider interface {
	Complete(ctx context.Context, messages []Message, maxTokens int) (string, error)
	Name() string
}

// KeyFunc resolves an API key on demand.
type KeyFunc func() (string, error)

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Name identifies the provider in logs and the run ledger.
func (o *OllamaProvider) Name() string { return "ollama:" + o.Model }

// IsAvailable checks if Ollama is running and the model is pulled.
func (o *OllamaProvider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	return false
}

// Complete sends the messages to Ollama and returns the reply.
func (o *OllamaProvider) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	body := map[string]any{
		"model":    o.Model,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": 0,
		},
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/api/chat", nil, body, &result); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}

	if strings.TrimSpace(result.Message.Content) == "" {
		return "", ErrNoChoices
	}
	return result.Message.Content, nil
}

// OpenAIProvider is an OpenAI chat completions provider.
type OpenAIProvider struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(model, apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		Model:   model,
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Name identifies the provider in logs and the run ledger.
func (o *OpenAIProvider) Name() string { return "openai:" + o.Model }

// Complete sends the messages to OpenAI and returns the first choice.
func (o *OpenAIProvider) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	body := map[string]any{
		"model":       o.Model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": 0,
	}
	headers := map[string]string{"Authorization": "Bearer " + o.APIKey}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/chat/completions", headers, body, &result); err != nil {
		return "", fmt.Errorf("OpenAI: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", ErrNoChoices
	}
	return result.Choices[0].Message.Content, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Settings selects and configures a provider.
type Settings struct {
	Provider    string // openai, ollama, gemini or none
	OpenAIModel string
	OpenAIURL   string
	OllamaModel string
	OllamaURL   string
	GeminiModel string
}

// CreateProvider creates an LLM provider based on configuration. It returns
// nil, nil when the provider is "none".
func CreateProvider(ctx context.Context, s Settings, apiKey KeyFunc, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(s.Provider) {
	case "none", "":
		return nil, nil
	case "gemini":
		key, err := apiKey()
		if err != nil {
			return nil, err
		}
		p, err := NewGeminiProvider(ctx, s.GeminiModel, key)
		if err != nil {
			return nil, err
		}
		logger.Info("Using Gemini", zap.String("model", s.GeminiModel))
		return p, nil
	case "ollama":
		p := NewOllamaProvider(s.OllamaModel, s.OllamaURL)
		if p.IsAvailable(ctx) {
			logger.Info("Using Ollama", zap.String("model", s.OllamaModel))
			return p, nil
		}
		logger.Warn("Ollama not available, trying OpenAI fallback", zap.String("url", s.OllamaURL))
		fallthrough
	case "openai":
		key, err := apiKey()
		if err != nil {
			return nil, err
		}
		logger.Info("Using OpenAI", zap.String("model", s.OpenAIModel))
		return NewOpenAIProvider(s.OpenAIModel, key, s.OpenAIURL), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", s.Provider)
}

// Lazy defers provider construction until the first completion, so a
// missing credential only matters once a route actually needs the model.
type Lazy struct {
	factory func() (Provider, error)
	once    sync.Once
	p       Provider
	err     error
}

// NewLazy wraps a provider factory.
func NewLazy(factory func() (Provider, error)) *Lazy {
	return &Lazy{factory: factory}
}

func (l *Lazy) get() (Provider, error) {
	l.once.Do(func() {
		l.p, l.err = l.factory()
		if l.err == nil && l.p == nil {
			l.err = fmt.Errorf("no LLM provider configured")
		}
	})
	return l.p, l.err
}

// Complete builds the provider on first use and delegates to it.
func (l *Lazy) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	p, err := l.get()
	if err != nil {
		return "", err
	}
	return p.Complete(ctx, messages, maxTokens)
}

// Name returns the wrapped provider's name. It builds the provider if that
// has not happened yet.
func (l *Lazy) Name() string {
	p, err := l.get()
	if err != nil {
		return "unavailable"
	}
	return p.Name()
}
