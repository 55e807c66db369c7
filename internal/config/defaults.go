package config

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/jackzampolin/quill/internal/credits"
	"github.com/jackzampolin/quill/internal/providers"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry describes one configuration key: its default and the environment
// variables that override it, in precedence order.
type Entry struct {
	Key         string   `json:"key"`
	Value       any      `json:"value"`
	Env         []string `json:"env,omitempty"`
	Description string   `json:"description"`
}

// DefaultEntries returns every known configuration key.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Key:         "environment",
			Value:       "development",
			Env:         []string{"QUILL_ENV", "NODE_ENV"},
			Description: "Deployment environment; \"production\" requires a credits secret",
		},

		// Credits
		{
			Key:         "credits.secret",
			Value:       "",
			Env:         []string{"QUILL_CREDITS_SECRET", "CREDITS_SECRET"},
			Description: "HMAC secret for credit tokens (supports ${ENV_VAR})",
		},
		{
			Key:         "credits.initial",
			Value:       credits.DefaultInitialCredits,
			Env:         []string{"QUILL_INITIAL_CREDITS", "INITIAL_CREDITS"},
			Description: "Balance granted to clients without a valid token",
		},
		{
			Key:         "credits.costs.discover",
			Value:       1,
			Env:         []string{"CREDITS_COST_DISCOVER"},
			Description: "Credits charged per discover call",
		},
		{
			Key:         "credits.costs.outline",
			Value:       1,
			Env:         []string{"CREDITS_COST_OUTLINE"},
			Description: "Credits charged per outline call",
		},
		{
			Key:         "credits.costs.generate",
			Value:       1,
			Env:         []string{"CREDITS_COST_GENERATE"},
			Description: "Credits charged per chapter generation",
		},
		{
			Key:         "credits.costs.crm",
			Value:       1,
			Env:         []string{"CREDITS_COST_CRM"},
			Description: "Credits charged per CRM content call",
		},
		{
			Key:         "credits.topup_enabled",
			Value:       false,
			Env:         []string{"QUILL_DEV_TOPUP_ENABLED", "DEV_TOPUP_ENABLED"},
			Description: "Allow top-ups in production",
		},
		{
			Key:         "credits.cookie_name",
			Value:       credits.DefaultCookieName,
			Description: "Cookie that carries the credit token",
		},

		// LLM
		{
			Key:         "llm.base_url",
			Value:       providers.GroqBaseURL,
			Env:         []string{"QUILL_LLM_BASE_URL"},
			Description: "OpenAI-compatible chat completions endpoint",
		},
		{
			Key:         "llm.api_key",
			Value:       "${GROQ_API_KEY}",
			Env:         []string{"QUILL_LLM_API_KEY", "GROQ_API_KEY"},
			Description: "LLM API key (uses environment variable)",
		},
		{
			Key:         "llm.model",
			Value:       providers.GroqDefaultModel,
			Env:         []string{"GROQ_MODEL"},
			Description: "Preferred model",
		},
		{
			Key:         "llm.fallback_models",
			Value:       providers.DefaultFallbackModels,
			Env:         []string{"GROQ_FALLBACK_MODELS"},
			Description: "Models tried in order when the preferred one is unavailable (CSV in env)",
		},
		{
			Key:         "llm.timeout_seconds",
			Value:       20,
			Description: "Per-attempt timeout in seconds",
		},
		{
			Key:         "llm.max_attempts",
			Value:       2,
			Description: "Attempts per model on transient failures",
		},
		{
			Key:         "llm.retry_delay_ms",
			Value:       350,
			Description: "Delay between attempts in milliseconds",
		},
		{
			Key:         "llm.rate_limit",
			Value:       30.0,
			Description: "Requests per second to the LLM across all clients",
		},

		// Server
		{
			Key:         "server.host",
			Value:       "127.0.0.1",
			Env:         []string{"QUILL_HOST"},
			Description: "Listen host",
		},
		{
			Key:         "server.port",
			Value:       8080,
			Env:         []string{"QUILL_PORT", "PORT"},
			Description: "Listen port",
		},
		{
			Key:         "server.client_rate_limit",
			Value:       2.0,
			Description: "Billable requests per second allowed per client IP",
		},
		{
			Key:         "server.client_burst",
			Value:       10,
			Description: "Burst size for the per-client limiter",
		},

		// Journal
		{
			Key:         "journal.enabled",
			Value:       true,
			Description: "Record every LLM call to the journal",
		},
		{
			Key:         "journal.path",
			Value:       "~/.quill/journal.db",
			Env:         []string{"QUILL_JOURNAL_PATH"},
			Description: "SQLite file for the LLM call journal",
		},
	}
}

// GetDefault returns the default entry for a key, or nil.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
