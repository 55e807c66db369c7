package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackzampolin/quill/internal/credits"
	"github.com/jackzampolin/quill/internal/providers"
)

// EnvProduction is the environment value that enables production checks.
const EnvProduction = "production"

// Config holds quill configuration.
// Stored at: ./config.yaml or ~/.quill/config.yaml
type Config struct {
	Environment string     `mapstructure:"environment" yaml:"environment"`
	Credits     CreditsCfg `mapstructure:"credits" yaml:"credits"`
	LLM         LLMCfg     `mapstructure:"llm" yaml:"llm"`
	Server      ServerCfg  `mapstructure:"server" yaml:"server"`
	Journal     JournalCfg `mapstructure:"journal" yaml:"journal"`
}

// CreditsCfg configures the credit ledger.
type CreditsCfg struct {
	Secret       string   `mapstructure:"secret" yaml:"secret"` // supports ${ENV_VAR} syntax
	Initial      int64    `mapstructure:"initial" yaml:"initial"`
	Costs        CostsCfg `mapstructure:"costs" yaml:"costs"`
	TopupEnabled bool     `mapstructure:"topup_enabled" yaml:"topup_enabled"`
	CookieName   string   `mapstructure:"cookie_name" yaml:"cookie_name"`
}

// CostsCfg is the per-operation price list.
type CostsCfg struct {
	Discover int64 `mapstructure:"discover" yaml:"discover"`
	Outline  int64 `mapstructure:"outline" yaml:"outline"`
	Generate int64 `mapstructure:"generate" yaml:"generate"`
	CRM      int64 `mapstructure:"crm" yaml:"crm"`
}

// LLMCfg configures the chat completions client.
type LLMCfg struct {
	BaseURL        string   `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string   `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Model          string   `mapstructure:"model" yaml:"model"`
	FallbackModels []string `mapstructure:"fallback_models" yaml:"fallback_models"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxAttempts    int      `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelayMs   int      `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	RateLimit      float64  `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host            string  `mapstructure:"host" yaml:"host"`
	Port            int     `mapstructure:"port" yaml:"port"`
	ClientRateLimit float64 `mapstructure:"client_rate_limit" yaml:"client_rate_limit"`
	ClientBurst     int     `mapstructure:"client_burst" yaml:"client_burst"`
}

// JournalCfg configures the LLM call journal.
type JournalCfg struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Credits: CreditsCfg{
			Initial: credits.DefaultInitialCredits,
			Costs: CostsCfg{
				Discover: credits.DefaultCost,
				Outline:  credits.DefaultCost,
				Generate: credits.DefaultCost,
				CRM:      credits.DefaultCost,
			},
			CookieName: credits.DefaultCookieName,
		},
		LLM: LLMCfg{
			BaseURL:        providers.GroqBaseURL,
			APIKey:         "${GROQ_API_KEY}",
			Model:          providers.GroqDefaultModel,
			FallbackModels: providers.DefaultFallbackModels,
			TimeoutSeconds: 20,
			MaxAttempts:    2,
			RetryDelayMs:   350,
			RateLimit:      30,
		},
		Server: ServerCfg{
			Host:            "127.0.0.1",
			Port:            8080,
			ClientRateLimit: 2,
			ClientBurst:     10,
		},
		Journal: JournalCfg{
			Enabled: true,
			Path:    "~/.quill/journal.db",
		},
	}
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvProduction)
}

// ToCreditsConfig converts the config for credits.NewBank.
// Outside production an empty secret falls back to the LLM key, and then to
// the bank's development secret. Production never falls back.
func (c *Config) ToCreditsConfig() credits.Config {
	secret := ResolveEnvVars(c.Credits.Secret)
	if secret == "" && !c.IsProduction() {
		secret = ResolveEnvVars(c.LLM.APIKey)
	}

	return credits.Config{
		Secret:         secret,
		Production:     c.IsProduction(),
		InitialCredits: c.Credits.Initial,
		Costs: credits.Costs{
			Discover: c.Credits.Costs.Discover,
			Outline:  c.Credits.Costs.Outline,
			Generate: c.Credits.Costs.Generate,
			CRM:      c.Credits.Costs.CRM,
		},
		TopupEnabled: c.Credits.TopupEnabled,
		CookieName:   c.Credits.CookieName,
	}
}

// ToGroqConfig converts the config for providers.NewGroqClient.
// It resolves ${ENV_VAR} references in the API key.
func (c *Config) ToGroqConfig() providers.GroqConfig {
	var fallbacks []string
	for _, m := range c.LLM.FallbackModels {
		if m = strings.TrimSpace(m); m != "" {
			fallbacks = append(fallbacks, m)
		}
	}
	if fallbacks == nil {
		fallbacks = []string{}
	}

	return providers.GroqConfig{
		APIKey:         ResolveEnvVars(c.LLM.APIKey),
		BaseURL:        c.LLM.BaseURL,
		Model:          c.LLM.Model,
		FallbackModels: fallbacks,
		Timeout:        time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		MaxAttempts:    c.LLM.MaxAttempts,
		RetryDelay:     time.Duration(c.LLM.RetryDelayMs) * time.Millisecond,
		RateLimit:      c.LLM.RateLimit,
	}
}

// JournalPath returns the journal file with a leading ~ expanded.
func (c *Config) JournalPath() string {
	return ExpandHome(c.Journal.Path)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
