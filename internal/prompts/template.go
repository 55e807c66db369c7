package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"slices"
)

// variablePattern matches template references like {{.Topic}} or {{ .Outline.Title }}.
var variablePattern = regexp.MustCompile(`\{\{\s*\.([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// ExtractVariables returns the sorted, de-duplicated field references in a
// template. Nested fields are returned dotted ("Book.Title").
func ExtractVariables(text string) []string {
	seen := make(map[string]struct{})
	var vars []string
	for _, match := range variablePattern.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		vars = append(vars, match[1])
	}
	slices.Sort(vars)
	return vars
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
