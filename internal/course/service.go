package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/quill/internal/llmcall"
	"github.com/jackzampolin/quill/internal/prompts"
	"github.com/jackzampolin/quill/internal/providers"
)

// Operation names used for journal records.
const (
	OpDiscover = "discover"
	OpOutline  = "outline"
	OpGenerate = "generate"
	OpCRM      = "crm"
	OpDocs     = "docs"
)

// callOptions are the generation parameters for one operation.
type callOptions struct {
	op          string
	system      string
	user        string
	temperature float64
	maxTokens   int
	format      *providers.ResponseFormat
}

var (
	discoverCall = callOptions{op: OpDiscover, system: PromptDiscoverSystem, user: PromptDiscoverUser, temperature: 0.2, maxTokens: 512, format: providers.JSONObjectFormat}
	outlineCall  = callOptions{op: OpOutline, system: PromptOutlineSystem, user: PromptOutlineUser, temperature: 0.4, maxTokens: 2048}
	generateCall = callOptions{op: OpGenerate, system: PromptGenerateSystem, user: PromptGenerateUser, temperature: 0.6, maxTokens: 4096}
	crmCall      = callOptions{op: OpCRM, system: PromptCRMSystem, user: PromptCRMUser, temperature: 0.5, maxTokens: 4096}
	docsCall     = callOptions{op: OpDocs, system: PromptDocsSystem, user: PromptDocsUser, temperature: 0.4, maxTokens: 4096}
)

// Service runs course operations against an LLM.
type Service struct {
	llm      providers.LLMClient
	prompts  *prompts.Resolver
	recorder *llmcall.Recorder
	logger   *slog.Logger
}

// Config holds Service dependencies. Only LLM is required.
type Config struct {
	LLM      providers.LLMClient
	Prompts  *prompts.Resolver
	Recorder *llmcall.Recorder
	Logger   *slog.Logger
}

// NewService creates a course service.
func NewService(cfg Config) *Service {
	if cfg.Prompts == nil {
		cfg.Prompts = NewResolver()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		llm:      cfg.LLM,
		prompts:  cfg.Prompts,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
}

// Discover returns 3-5 course titles for a topic.
func (s *Service) Discover(ctx context.Context, req DiscoverRequest) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	content, err := s.complete(ctx, discoverCall, req)
	if err != nil {
		return nil, err
	}
	return parseOpportunities(content)
}

// Outline returns an outline with exactly the requested number of chapters.
func (s *Service) Outline(ctx context.Context, req OutlineRequest) (*Outline, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data := struct {
		Title       string
		NumChapters int
	}{req.OpportunityTitle, req.Chapters()}

	content, err := s.complete(ctx, outlineCall, data)
	if err != nil {
		return nil, err
	}
	return parseOutline(content, req.OpportunityTitle, req.Chapters())
}

// Generate writes the markdown content of one chapter.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	data := struct {
		CourseTitle  string
		ChapterTitle string
		Points       string
	}{req.CourseTitle, req.ChapterTitle, strings.Join(req.Points(), ", ")}

	return s.complete(ctx, generateCall, data)
}

// CRM writes a go-to-market pack for an outlined course.
func (s *Service) CRM(ctx context.Context, req CRMRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	data := struct {
		CourseTitle string
		Summary     string
	}{req.CourseTitle, outlineSummary(req.Outline.Chapters)}

	return s.complete(ctx, crmCall, data)
}

// Docs writes a documentation page for a topic.
func (s *Service) Docs(ctx context.Context, req DocsRequest) (*Doc, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.withDefaults()
	data := struct {
		Topic               string
		ScopeText           string
		IncludeCodeExamples bool
		Language            string
	}{req.Topic, scopeText(req.Scope), *req.IncludeCodeExamples, req.Language}

	content, err := s.complete(ctx, docsCall, data)
	if err != nil {
		return nil, err
	}
	return parseDoc(content)
}

// complete renders the prompts, calls the model and journals the result.
// A model that rejects response_format is retried once without it.
func (s *Service) complete(ctx context.Context, opts callOptions, data any) (string, error) {
	if s.llm == nil {
		return "", providers.ErrNotConfigured
	}

	system, err := s.prompts.Render(opts.system, data)
	if err != nil {
		return "", err
	}
	user, err := s.prompts.Render(opts.user, data)
	if err != nil {
		return "", err
	}

	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: system},
			{Role: providers.RoleUser, Content: user},
		},
		Temperature:    opts.temperature,
		MaxTokens:      opts.maxTokens,
		ResponseFormat: opts.format,
	}

	result, err := s.chat(ctx, opts, req)
	if errors.Is(err, providers.ErrResponseFormat) && req.ResponseFormat != nil {
		s.logger.Info("model rejected response_format, retrying with plain prompt", "operation", opts.op)
		req.ResponseFormat = nil
		result, err = s.chat(ctx, opts, req)
	}
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (s *Service) chat(ctx context.Context, opts callOptions, req *providers.ChatRequest) (*providers.ChatResult, error) {
	result, err := s.llm.Chat(ctx, req)

	temp := opts.temperature
	s.recorder.Record(result, llmcall.RecordOptions{Operation: opts.op, Temperature: &temp})

	if err != nil {
		s.logger.Warn("llm call failed", "operation", opts.op, "error", err)
		return nil, err
	}
	s.logger.Debug("llm call complete",
		"operation", opts.op,
		"model", result.ModelUsed,
		"tokens", result.TotalTokens,
		"latency", result.ExecutionTime)
	return result, nil
}

// parseOpportunities accepts a bare array, an {"opportunities": [...]}
// wrapper, or an array embedded in prose.
func parseOpportunities(content string) ([]string, error) {
	var items []any

	var parsed any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err == nil {
		switch v := parsed.(type) {
		case []any:
			items = v
		case map[string]any:
			if arr, ok := v["opportunities"].([]any); ok {
				items = arr
			}
		}
	}
	if items == nil {
		raw, err := providers.ExtractJSONArray(content)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}

	titles := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if t := strings.TrimSpace(v); t != "" {
				titles = append(titles, t)
			}
		case map[string]any:
			// Some models return [{"title": "..."}].
			if t, ok := v["title"].(string); ok && strings.TrimSpace(t) != "" {
				titles = append(titles, strings.TrimSpace(t))
			}
		}
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: no opportunities in model output", ErrInvalidResponse)
	}
	return titles, nil
}

// parseOutline extracts the outline object and forces it to n chapters,
// truncating or padding with "Chapter N" placeholders.
func parseOutline(content, fallbackTitle string, n int) (*Outline, error) {
	raw, err := providers.ExtractJSONObject(content)
	if err != nil {
		return nil, err
	}
	if err := outlineSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: invalid outline structure: %v", ErrInvalidResponse, err)
	}

	var doc struct {
		Title    string `json:"title"`
		Chapters []struct {
			Title   any `json:"title"`
			Summary any `json:"summary"`
		} `json:"chapters"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	outline := &Outline{Title: strings.TrimSpace(doc.Title)}
	if outline.Title == "" {
		outline.Title = fallbackTitle
	}

	for i, ch := range doc.Chapters {
		if len(outline.Chapters) == n {
			break
		}
		title, _ := ch.Title.(string)
		title = strings.TrimSpace(title)
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		outline.Chapters = append(outline.Chapters, Chapter{
			Title:   title,
			Summary: summaryLines(ch.Summary),
		})
	}
	for len(outline.Chapters) < n {
		outline.Chapters = append(outline.Chapters, Chapter{
			Title:   fmt.Sprintf("Chapter %d", len(outline.Chapters)+1),
			Summary: []string{},
		})
	}
	return outline, nil
}

func summaryLines(v any) []string {
	lines := []string{}
	switch s := v.(type) {
	case string:
		if t := strings.TrimSpace(s); t != "" {
			lines = append(lines, t)
		}
	case []any:
		for _, item := range s {
			switch it := item.(type) {
			case string:
				if t := strings.TrimSpace(it); t != "" {
					lines = append(lines, t)
				}
			case nil:
			default:
				lines = append(lines, fmt.Sprint(it))
			}
		}
	}
	return lines
}

func parseDoc(content string) (*Doc, error) {
	raw, err := providers.ExtractJSONObject(content)
	if err != nil {
		return nil, err
	}
	if err := docSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: invalid documentation format: %v", ErrInvalidResponse, err)
	}
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &doc, nil
}

// outlineSummary renders chapters as "- Chapter N: title => a; b" lines.
func outlineSummary(chapters []Chapter) string {
	lines := make([]string, len(chapters))
	for i, ch := range chapters {
		lines[i] = fmt.Sprintf("- Chapter %d: %s => %s", i+1, ch.Title, strings.Join(ch.Summary, "; "))
	}
	return strings.Join(lines, "\n")
}
