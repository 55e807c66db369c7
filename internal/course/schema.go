package course

import "github.com/jackzampolin/quill/internal/providers"

// outlineSchema is deliberately loose: chapter count and summary shape are
// normalized after validation.
var outlineSchema = providers.MustCompileSchema("outline.json", `{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"chapters": {
			"type": "array",
			"items": {"type": "object"}
		}
	},
	"required": ["chapters"]
}`)

var docSchema = providers.MustCompileSchema("doc.json", `{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"content": {"type": "string"}
	},
	"required": ["title", "content"]
}`)
