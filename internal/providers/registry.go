package providers

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Registry holds the active LLM client. It is rebuilt from config on
// hot-reload and is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	client LLMClient
	cfg    GroqConfig
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// NewRegistryFromConfig creates a registry with a Groq client built from cfg.
func NewRegistryFromConfig(cfg GroqConfig, logger *slog.Logger) *Registry {
	r := NewRegistry()
	if logger != nil {
		r.logger = logger
	}
	r.applyConfig(cfg)
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register installs a client directly (tests, alternative providers).
func (r *Registry) Register(client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client = client
	if r.logger != nil && client != nil {
		r.logger.Info("registered LLM client", "name", client.Name())
	}
}

// LLM returns the active client, or nil if none is registered.
func (r *Registry) LLM() LLMClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.client
}

// Name returns the active client's name, or "none".
func (r *Registry) Name() string {
	if c := r.LLM(); c != nil {
		return c.Name()
	}
	return "none"
}

// Chat forwards to the active client, so callers holding the registry pick up
// reloaded configuration.
func (r *Registry) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	c := r.LLM()
	if c == nil {
		return nil, ErrNotConfigured
	}
	return c.Chat(ctx, req)
}

// HealthCheck checks the active client.
func (r *Registry) HealthCheck(ctx context.Context) error {
	c := r.LLM()
	if c == nil {
		return ErrNotConfigured
	}
	return c.HealthCheck(ctx)
}

// Reload rebuilds the client if the config changed.
func (r *Registry) Reload(cfg GroqConfig) {
	r.mu.RLock()
	unchanged := r.client != nil && !needsLLMUpdate(r.cfg, cfg)
	r.mu.RUnlock()
	if unchanged {
		return
	}
	r.applyConfig(cfg)
}

func (r *Registry) applyConfig(cfg GroqConfig) {
	client := NewGroqClient(cfg)

	r.mu.Lock()
	r.client = client
	r.cfg = cfg
	logger := r.logger
	r.mu.Unlock()

	if logger != nil {
		logger.Info("configured LLM client",
			"name", client.Name(),
			"base_url", client.BaseURL(),
			"model", client.Model(),
			"configured", client.Configured())
	}
}

func needsLLMUpdate(old, next GroqConfig) bool {
	return old.APIKey != next.APIKey ||
		old.BaseURL != next.BaseURL ||
		old.Model != next.Model ||
		!slices.Equal(old.FallbackModels, next.FallbackModels) ||
		old.Timeout != next.Timeout ||
		old.MaxAttempts != next.MaxAttempts ||
		old.RetryDelay != next.RetryDelay ||
		old.RateLimit != next.RateLimit
}

var _ LLMClient = (*Registry)(nil)
