// Package prompts holds the embedded prompt templates used for LLM calls.
//
// Templates are Go text/template strings registered at startup by the
// packages that own them. Each prompt carries a content hash so journal
// entries and the prompts API can tell which version produced a response.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   `json:"key"`                   // Hierarchical key: course.outline.user
	Text        string   `json:"text"`                  // The prompt text (Go template)
	Description string   `json:"description,omitempty"` // Human-readable description
	Variables   []string `json:"variables,omitempty"`   // Extracted template variables
	Hash        string   `json:"hash"`                  // SHA256 of Text
}
