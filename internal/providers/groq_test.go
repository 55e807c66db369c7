package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func completionJSON(model, content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   model,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
	})
	return string(b)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("read body: %v", err)
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Errorf("decode body: %v", err)
	}
	return payload
}

func newTestGroq(url string, mutate func(*GroqConfig)) *GroqClient {
	cfg := GroqConfig{
		APIKey:         "test-key",
		BaseURL:        url,
		Model:          "primary",
		FallbackModels: []string{"secondary", "tertiary"},
		RetryDelay:     time.Millisecond,
		RateLimit:      1000,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewGroqClient(cfg)
}

func TestGroqClient_Chat(t *testing.T) {
	var (
		mu      sync.Mutex
		payload map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		body := decodeBody(t, r)
		mu.Lock()
		payload = body
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("primary", `["A","B"]`)))
	}))
	defer server.Close()

	client := newTestGroq(server.URL, nil)
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be precise"},
			{Role: RoleUser, Content: "list titles"},
		},
		Temperature:    0.2,
		MaxTokens:      512,
		ResponseFormat: JSONObjectFormat,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if !result.Success || result.Content != `["A","B"]` {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.ModelUsed != "primary" || result.Provider != GroqName {
		t.Errorf("ModelUsed = %q, Provider = %q", result.ModelUsed, result.Provider)
	}
	if result.TotalTokens != 17 || result.Attempts != 1 {
		t.Errorf("TotalTokens = %d, Attempts = %d", result.TotalTokens, result.Attempts)
	}
	if result.RequestID == "" {
		t.Error("expected a generated request ID")
	}

	mu.Lock()
	defer mu.Unlock()
	if got, _ := payload["model"].(string); got != "primary" {
		t.Errorf("model = %q, want primary", got)
	}
	if got, _ := payload["temperature"].(float64); got != 0.2 {
		t.Errorf("temperature = %v, want 0.2", got)
	}
	if got, _ := payload["max_tokens"].(float64); got != 512 {
		t.Errorf("max_tokens = %v, want 512", got)
	}
	rf, _ := payload["response_format"].(map[string]any)
	if got, _ := rf["type"].(string); got != "json_object" {
		t.Errorf("response_format = %v, want json_object", payload["response_format"])
	}
	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", payload["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("first message role = %v", first["role"])
	}
}

func TestGroqClient_FallsBackOnUnavailableModel(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		model, _ := decodeBody(t, r)["model"].(string)
		mu.Lock()
		seen = append(seen, model)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch model {
		case "primary":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"The model primary does not exist","type":"invalid_request_error","code":"model_not_found"}}`))
		case "secondary":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"The model secondary has been decommissioned","type":"invalid_request_error"}}`))
		default:
			_, _ = w.Write([]byte(completionJSON(model, "ok")))
		}
	}))
	defer server.Close()

	result, err := newTestGroq(server.URL, nil).Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.ModelUsed != "tertiary" {
		t.Errorf("ModelUsed = %q, want tertiary", result.ModelUsed)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(seen, []string{"primary", "secondary", "tertiary"}) {
		t.Errorf("models tried = %v", seen)
	}
}

func TestGroqClient_AllModelsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown model","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	result, err := newTestGroq(server.URL, nil).Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Chat() error = %v, want ErrModelUnavailable", err)
	}
	if result.Success || result.Attempts != 3 {
		t.Errorf("Success = %v, Attempts = %d", result.Success, result.Attempts)
	}
}

func TestGroqClient_StopsOnOtherErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	_, err := newTestGroq(server.URL, nil).Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Chat() error = %v, want ErrUnauthorized", err)
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, want 1", calls.Load())
	}
}

func TestGroqClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	_, err := newTestGroq(server.URL, nil).Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Chat() error = %v, want ErrRateLimited", err)
	}
	rle, ok := IsRateLimitError(err)
	if !ok {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if rle.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %v, want 3s", rle.RetryAfter)
	}
}

func TestGroqClient_RetriesTimeouts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("primary", "second time lucky")))
	}))
	defer server.Close()

	client := newTestGroq(server.URL, func(c *GroqConfig) { c.Timeout = 100 * time.Millisecond })
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Content != "second time lucky" || result.Attempts != 2 {
		t.Errorf("Content = %q, Attempts = %d", result.Content, result.Attempts)
	}
}

func TestGroqClient_NotConfigured(t *testing.T) {
	client := NewGroqClient(GroqConfig{APIKey: "   "})
	if client.Configured() {
		t.Fatal("whitespace key should not count as configured")
	}
	if _, err := client.Chat(context.Background(), &ChatRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Chat() error = %v, want ErrNotConfigured", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConfigured", err)
	}
}

func TestGroqClient_ModelsToTry(t *testing.T) {
	client := NewGroqClient(GroqConfig{
		Model:          "a",
		FallbackModels: []string{"b", " a ", "", "c", "b"},
	})

	if got := client.ModelsToTry(""); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("ModelsToTry(\"\") = %v", got)
	}
	if got := client.ModelsToTry("c"); !slices.Equal(got, []string{"c", "b", "a"}) {
		t.Errorf("ModelsToTry(\"c\") = %v", got)
	}

	defaults := NewGroqClient(GroqConfig{})
	want := append([]string{GroqDefaultModel}, DefaultFallbackModels...)
	if got := defaults.ModelsToTry(""); !slices.Equal(got, want) {
		t.Errorf("default ModelsToTry = %v, want %v", got, want)
	}
}

func TestGroqClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"llama-3.1-8b-instant","object":"model","created":1,"owned_by":"Meta"}]}`))
	}))
	defer server.Close()

	if err := newTestGroq(server.URL, nil).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
}

func TestGroqIntegration(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.HasGroq() {
		t.Skip("GROQ_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := cfg.NewGroqClient().Chat(ctx, &ChatRequest{
		Messages:  []Message{{Role: RoleUser, Content: "Reply with the single word: pong"}},
		MaxTokens: 8,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Content == "" {
		t.Error("expected non-empty content")
	}
}
