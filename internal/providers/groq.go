package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/time/rate"
)

const (
	GroqName         = "groq"
	GroqBaseURL      = "https://api.groq.com/openai/v1"
	GroqDefaultModel = "llama-3.1-8b-instant"
)

// DefaultFallbackModels are tried in order when the preferred model is unavailable.
var DefaultFallbackModels = []string{"llama-3.1-70b-versatile", "mixtral-8x7b-32768"}

// GroqConfig holds configuration for the Groq client.
type GroqConfig struct {
	APIKey         string
	BaseURL        string   // Any OpenAI-compatible endpoint (default: Groq)
	Model          string   // Preferred model
	FallbackModels []string // Tried in order after Model

	Timeout     time.Duration // Per attempt (default: 20s)
	MaxAttempts int           // Attempts per model on transient failure (default: 2)
	RetryDelay  time.Duration // Delay between attempts (default: 350ms)
	RateLimit   float64       // Requests per second across all callers (default: 30)

	HTTPClient *http.Client // Optional (tests)
}

// GroqClient implements LLMClient against Groq's OpenAI-compatible API.
type GroqClient struct {
	apiKey      string
	baseURL     string
	model       string
	fallbacks   []string
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	limiter     *rate.Limiter
	client      openai.Client
}

// NewGroqClient creates a new Groq client.
func NewGroqClient(cfg GroqConfig) *GroqClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GroqBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = GroqDefaultModel
	}
	if cfg.FallbackModels == nil {
		cfg.FallbackModels = DefaultFallbackModels
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 350 * time.Millisecond
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 30
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	// Retries are ours: per model, transient only, fixed delay.
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &GroqClient{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		fallbacks:   cfg.FallbackModels,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit))),
		client:      client,
	}
}

// Name returns the client identifier.
func (c *GroqClient) Name() string {
	return GroqName
}

// Configured reports whether an API key is set.
func (c *GroqClient) Configured() bool {
	return c.apiKey != ""
}

// BaseURL returns the API endpoint.
func (c *GroqClient) BaseURL() string {
	return c.baseURL
}

// Model returns the preferred model.
func (c *GroqClient) Model() string {
	return c.model
}

// ModelsToTry returns the candidate models for a request: the requested model
// (or the configured one), then the fallbacks, without duplicates.
func (c *GroqClient) ModelsToTry(requested string) []string {
	preferred := strings.TrimSpace(requested)
	if preferred == "" {
		preferred = c.model
	}

	seen := make(map[string]struct{}, len(c.fallbacks)+1)
	models := make([]string, 0, len(c.fallbacks)+1)
	for _, m := range append([]string{preferred}, c.fallbacks...) {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		models = append(models, m)
	}
	return models
}

// HealthCheck verifies the API is reachable and the key is valid.
func (c *GroqClient) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("groq models list failed: %w", NormalizeError(err))
	}
	if page == nil {
		return fmt.Errorf("groq models list returned nil response")
	}
	return nil
}

// Chat sends a chat completion request, walking the model fallback chain.
// Only model-unavailable errors move on to the next model; anything else is
// returned immediately.
func (c *GroqClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  GroqName,
	}

	fail := func(err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	if !c.Configured() {
		return fail(ErrNotConfigured)
	}

	var lastErr error
	for _, model := range c.ModelsToTry(req.Model) {
		result.ModelUsed = model

		resp, attempts, err := c.complete(ctx, model, req)
		result.Attempts += attempts
		if err == nil {
			if len(resp.Choices) == 0 {
				return fail(fmt.Errorf("no choices in response"))
			}
			result.Success = true
			result.Content = resp.Choices[0].Message.Content
			if resp.Model != "" {
				result.ModelUsed = resp.Model
			}
			result.PromptTokens = int(resp.Usage.PromptTokens)
			result.CompletionTokens = int(resp.Usage.CompletionTokens)
			result.TotalTokens = int(resp.Usage.TotalTokens)
			result.ExecutionTime = time.Since(start)
			return result, nil
		}

		lastErr = err
		if !isModelUnavailable(err) {
			break
		}
	}

	if lastErr == nil {
		lastErr = ErrModelUnavailable
	}
	return fail(NormalizeError(lastErr))
}

// complete runs one model with bounded retries on transient failures.
func (c *GroqClient) complete(ctx context.Context, model string, req *ChatRequest) (*openai.ChatCompletion, int, error) {
	params := c.buildParams(model, req)

	attempts := 0
	resp, err := retry.DoWithData(
		func() (*openai.ChatCompletion, error) {
			attempts++
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, retry.Unrecoverable(err)
			}

			attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			resp, err := c.client.Chat.Completions.New(attemptCtx, params)
			if err != nil {
				if ctx.Err() != nil || !isTransient(err) {
					return nil, retry.Unrecoverable(err)
				}
				return nil, err
			}
			return resp, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxAttempts)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, attempts, err
	}
	return resp, attempts, nil
}

func (c *GroqClient) buildParams(model string, req *ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

var _ LLMClient = (*GroqClient)(nil)
