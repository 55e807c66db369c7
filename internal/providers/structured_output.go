package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrNoJSONArray is returned when model text holds no parseable JSON array.
	ErrNoJSONArray = errors.New("failed to parse JSON array from model response")

	// ErrNoJSONObject is returned when model text holds no parseable JSON object.
	ErrNoJSONObject = errors.New("failed to parse JSON object from model response")
)

// ExtractJSONArray returns the JSON array in model output. The whole text is
// tried first, then a fenced code block, then the span from the first '[' to
// the last ']'.
func ExtractJSONArray(content string) (json.RawMessage, error) {
	for _, candidate := range jsonCandidates(content, '[', ']') {
		if raw, ok := parseAs(candidate, '['); ok {
			return raw, nil
		}
	}
	return nil, ErrNoJSONArray
}

// ExtractJSONObject returns the JSON object in model output, recovering from
// code fences and surrounding prose the same way as ExtractJSONArray.
func ExtractJSONObject(content string) (json.RawMessage, error) {
	for _, candidate := range jsonCandidates(content, '{', '}') {
		if raw, ok := parseAs(candidate, '{'); ok {
			return raw, nil
		}
	}
	return nil, ErrNoJSONObject
}

func jsonCandidates(content string, open, close byte) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractSpan(content, open, close); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}
	return candidates
}

// parseAs decodes candidate and reports whether its top level starts with kind.
func parseAs(candidate string, kind byte) (json.RawMessage, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || candidate[0] != kind {
		return nil, false
	}
	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, false
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return nil, false
	}
	return normalized, true
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop the opening fence and its language tag.
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractSpan(content string, open, close byte) string {
	start := strings.IndexByte(content, open)
	end := strings.LastIndexByte(content, close)
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

// Schema is a compiled JSON schema used to check model output.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document.
func CompileSchema(name string, raw []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(name string, raw string) *Schema {
	s, err := CompileSchema(name, []byte(raw))
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a JSON document against the schema.
func (s *Schema) Validate(doc json.RawMessage) error {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("failed to decode JSON for validation: %w", err)
	}
	if err := s.schema.Validate(v); err != nil {
		return fmt.Errorf("model output does not match %s: %w", s.name, err)
	}
	return nil
}
