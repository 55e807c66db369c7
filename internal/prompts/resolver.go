package prompts

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"text/template"
)

// Resolver holds registered prompts and renders them.
type Resolver struct {
	mu        sync.RWMutex
	embedded  map[string]EmbeddedPrompt
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewResolver creates an empty prompt resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		embedded:  make(map[string]EmbeddedPrompt),
		templates: make(map[string]*template.Template),
		logger:    logger,
	}
}

// Register parses and registers an embedded prompt. Registering the same key
// twice replaces the earlier prompt.
func (r *Resolver) Register(prompt EmbeddedPrompt) error {
	tmpl, err := template.New(prompt.Key).Option("missingkey=error").Parse(prompt.Text)
	if err != nil {
		return fmt.Errorf("parse prompt %s: %w", prompt.Key, err)
	}

	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}

	r.mu.Lock()
	r.embedded[prompt.Key] = prompt
	r.templates[prompt.Key] = tmpl
	r.mu.Unlock()

	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
	return nil
}

// MustRegister is Register for prompts compiled into the binary.
func (r *Resolver) MustRegister(prompt EmbeddedPrompt) {
	if err := r.Register(prompt); err != nil {
		panic(err)
	}
}

// Get returns the prompt registered under key.
func (r *Resolver) Get(key string) (EmbeddedPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedded[key]
	return p, ok
}

// All returns every registered prompt sorted by key.
func (r *Resolver) All() []EmbeddedPrompt {
	r.mu.RLock()
	result := make([]EmbeddedPrompt, 0, len(r.embedded))
	for _, p := range r.embedded {
		result = append(result, p)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Render executes the prompt template with data.
func (r *Resolver) Render(key string, data any) (string, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[key]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("prompt not found: %s", key)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", key, err)
	}
	return strings.TrimSpace(b.String()), nil
}
