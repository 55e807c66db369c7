package course

import (
	"embed"
	"fmt"

	"github.com/jackzampolin/quill/internal/prompts"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompt keys, "course.<operation>.<role>".
const (
	PromptDiscoverSystem = "course.discover.system"
	PromptDiscoverUser   = "course.discover.user"
	PromptOutlineSystem  = "course.outline.system"
	PromptOutlineUser    = "course.outline.user"
	PromptGenerateSystem = "course.generate.system"
	PromptGenerateUser   = "course.generate.user"
	PromptCRMSystem      = "course.crm.system"
	PromptCRMUser        = "course.crm.user"
	PromptDocsSystem     = "course.docs.system"
	PromptDocsUser       = "course.docs.user"
)

var promptDescriptions = map[string]string{
	PromptDiscoverSystem: "Discover system prompt - JSON-only assistant",
	PromptDiscoverUser:   "Discover user prompt - 3-5 marketable course titles for a topic",
	PromptOutlineSystem:  "Outline system prompt - JSON-only assistant",
	PromptOutlineUser:    "Outline user prompt - exact chapter count with 3-5 learning points each",
	PromptGenerateSystem: "Chapter system prompt - expert author writing markdown",
	PromptGenerateUser:   "Chapter user prompt - full chapter content covering the learning points",
	PromptCRMSystem:      "CRM system prompt - growth planner writing markdown",
	PromptCRMUser:        "CRM user prompt - promotion, email sequence, creators, outreach and affiliates",
	PromptDocsSystem:     "Docs system prompt - technical writer",
	PromptDocsUser:       "Docs user prompt - structured markdown documentation returned as {title, content}",
}

// RegisterPrompts registers the course prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) error {
	for key, desc := range promptDescriptions {
		text, err := promptFS.ReadFile(fmt.Sprintf("prompts/%s.tmpl", key[len("course."):]))
		if err != nil {
			return fmt.Errorf("read prompt %s: %w", key, err)
		}
		if err := r.Register(prompts.EmbeddedPrompt{
			Key:         key,
			Text:        string(text),
			Description: desc,
		}); err != nil {
			return err
		}
	}
	return nil
}

// NewResolver returns a resolver with the course prompts registered.
func NewResolver() *prompts.Resolver {
	r := prompts.NewResolver(nil)
	if err := RegisterPrompts(r); err != nil {
		panic(err)
	}
	return r
}
