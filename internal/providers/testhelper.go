package providers

import (
	"os"
)

// TestConfig holds provider configuration loaded from environment variables.
// Live tests use it to decide whether to run.
type TestConfig struct {
	GroqAPIKey string
	GroqModel  string
}

// LoadTestConfig loads provider settings from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		GroqAPIKey: os.Getenv("GROQ_API_KEY"),
		GroqModel:  os.Getenv("GROQ_MODEL"),
	}
}

// HasGroq returns true if a Groq API key is configured.
func (c TestConfig) HasGroq() bool {
	return c.GroqAPIKey != ""
}

// NewGroqClient creates a Groq client from test config.
// Returns nil if not configured.
func (c TestConfig) NewGroqClient() *GroqClient {
	if !c.HasGroq() {
		return nil
	}
	return NewGroqClient(GroqConfig{
		APIKey: c.GroqAPIKey,
		Model:  c.GroqModel,
	})
}
