package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDecodeJSONPlain(t *testing.T) {
	var result []string
	if err := DecodeJSON(`["R", "Long runout"]`, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 || result[0] != "R" {
		t.Errorf("unexpected result %v", result)
	}
}

func TestDecodeJSONWithCodeFence(t *testing.T) {
	var result []string
	if err := DecodeJSON("```json\n[\"G\", \"Bolted\"]\n```", &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result[1] != "Bolted" {
		t.Errorf("expected 'Bolted', got %v", result[1])
	}
}

func TestDecodeJSONWithPlainFence(t *testing.T) {
	var result map[string]any
	if err := DecodeJSON("```\n{\"key\": \"value\"}\n```", &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	var result []string
	if err := DecodeJSON("not json at all", &result); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if err := DecodeJSON("", &result); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestStripCodeFenceUnterminated(t *testing.T) {
	if got := StripCodeFence("```json\n[\"X\"]"); got != `["X"]` {
		t.Errorf("unexpected %q", got)
	}
	if got := StripCodeFence("  \n  [1]  \n  "); got != "[1]" {
		t.Errorf("unexpected %q", got)
	}
}

func openAIServer(t *testing.T, status int, body string, seen *[]Message) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		var req struct {
			Messages []Message `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if seen != nil {
			*seen = req.Messages
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIComplete(t *testing.T) {
	var seen []Message
	srv := openAIServer(t, http.StatusOK, `{"choices":[{"message":{"content":"[\"G\",\"ok\"]"}}]}`, &seen)
	p := NewOpenAIProvider("gpt-4", "sk-test", srv.URL)

	msgs := []Message{{Role: RoleSystem, Content: "rules"}, {Role: RoleUser, Content: "beta"}}
	got, err := p.Complete(context.Background(), msgs, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `["G","ok"]` {
		t.Errorf("unexpected content %q", got)
	}
	if len(seen) != 2 || seen[0].Role != RoleSystem {
		t.Errorf("messages not forwarded in order: %v", seen)
	}
}

func TestOpenAINoChoices(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, `{"choices":[]}`, nil)
	_, err := NewOpenAIProvider("gpt-4", "sk-test", srv.URL).Complete(context.Background(), nil, 10)
	if !errors.Is(err, ErrNoChoices) {
		t.Errorf("expected ErrNoChoices, got %v", err)
	}
}

func TestOpenAIHTTPError(t *testing.T) {
	srv := openAIServer(t, http.StatusTooManyRequests, `rate limited`, nil)
	_, err := NewOpenAIProvider("gpt-4", "sk-test", srv.URL).Complete(context.Background(), nil, 10)
	if err == nil || errors.Is(err, ErrNoChoices) {
		t.Errorf("expected HTTP error, got %v", err)
	}
}

func TestOpenAIWithoutKey(t *testing.T) {
	_, err := NewOpenAIProvider("gpt-4", "", "").Complete(context.Background(), nil, 10)
	if err == nil {
		t.Error("expected error without API key")
	}
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			fmt.Fprint(w, `{"models":[{"name":"qwen2.5:7b"}]}`)
		case "/api/chat":
			fmt.Fprint(w, `{"message":{"content":"[\"PG13\",\"spicy\"]"}}`)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL)
	if !p.IsAvailable(context.Background()) {
		t.Fatal("expected model to be available")
	}
	got, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `["PG13","spicy"]` {
		t.Errorf("unexpected %q", got)
	}
}

func TestCreateProvider(t *testing.T) {
	noKey := func() (string, error) { return "", errors.New("no key") }

	p, err := CreateProvider(context.Background(), Settings{Provider: "none"}, noKey, nil)
	if err != nil || p != nil {
		t.Errorf("expected nil provider for none, got %v, %v", p, err)
	}

	if _, err := CreateProvider(context.Background(), Settings{Provider: "openai"}, noKey, nil); err == nil {
		t.Error("expected credential error for openai")
	}

	if _, err := CreateProvider(context.Background(), Settings{Provider: "carrier-pigeon"}, noKey, nil); err == nil {
		t.Error("expected error for unknown provider")
	}

	withKey := func() (string, error) { return "sk-test", nil }
	p, err = CreateProvider(context.Background(), Settings{Provider: "OpenAI", OpenAIModel: "gpt-4"}, withKey, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "openai:gpt-4" {
		t.Errorf("unexpected provider %s", p.Name())
	}
}

type stubProvider struct{ calls int }

func (s *stubProvider) Complete(context.Context, []Message, int) (string, error) {
	s.calls++
	return "ok", nil
}

func (s *stubProvider) Name() string { return "stub" }

func TestLazyBuildsOnce(t *testing.T) {
	builds := 0
	stub := &stubProvider{}
	lazy := NewLazy(func() (Provider, error) {
		builds++
		return stub, nil
	})
	if builds != 0 {
		t.Fatal("factory must not run before first use")
	}
	for i := 0; i < 3; i++ {
		if _, err := lazy.Complete(context.Background(), nil, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if builds != 1 || stub.calls != 3 {
		t.Errorf("expected 1 build and 3 calls, got %d and %d", builds, stub.calls)
	}
	if lazy.Name() != "stub" {
		t.Errorf("unexpected name %s", lazy.Name())
	}
}

func TestLazyReportsFactoryError(t *testing.T) {
	lazy := NewLazy(func() (Provider, error) { return nil, errors.New("no credential") })
	if _, err := lazy.Complete(context.Background(), nil, 1); err == nil {
		t.Error("expected factory error")
	}

	empty := NewLazy(func() (Provider, error) { return nil, nil })
	if _, err := empty.Complete(context.Background(), nil, 1); err == nil {
		t.Error("expected error for missing provider")
	}
}
