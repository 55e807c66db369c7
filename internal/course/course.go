// Package course turns a topic into a course: discovering marketable titles,
// outlining chapters, writing chapter content, building a go-to-market pack
// and writing reference documentation. Each step is one LLM call.
package course

import (
	"errors"
	"math"
	"strings"
)

// MaxChapters bounds an outline request.
const MaxChapters = 50

// ErrInvalidResponse is returned when model output cannot be reshaped into
// the expected structure.
var ErrInvalidResponse = errors.New("model returned an invalid response")

// ValidationError reports a bad request. Its message is shown to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Chapter is one entry of an outline. Content is filled in by Generate and
// is only carried through to export.
type Chapter struct {
	Title   string   `json:"title"`
	Summary []string `json:"summary"`
	Content string   `json:"content,omitempty"`
}

// Outline is a course title plus its chapters.
type Outline struct {
	Title    string    `json:"title"`
	Chapters []Chapter `json:"chapters"`
}

// Doc is a generated documentation page.
type Doc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DiscoverRequest asks for course opportunities around a topic.
type DiscoverRequest struct {
	Topic string `json:"topic"`
}

// Validate checks the request.
func (r *DiscoverRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return invalid("Invalid or missing 'topic'")
	}
	return nil
}

// OutlineRequest asks for a chapter outline.
type OutlineRequest struct {
	OpportunityTitle string  `json:"opportunityTitle"`
	NumChapters      float64 `json:"numChapters"`
}

// Validate checks the request.
func (r *OutlineRequest) Validate() error {
	if strings.TrimSpace(r.OpportunityTitle) == "" {
		return invalid("Invalid or missing 'opportunityTitle'")
	}
	n := r.NumChapters
	if n != math.Trunc(n) || n < 1 || n > MaxChapters {
		return invalid("'numChapters' must be an integer between 1 and 50")
	}
	return nil
}

// Chapters returns the requested chapter count.
func (r *OutlineRequest) Chapters() int {
	return int(r.NumChapters)
}

// GenerateRequest asks for the content of one chapter.
type GenerateRequest struct {
	CourseTitle        string   `json:"courseTitle"`
	ChapterTitle       string   `json:"chapterTitle"`
	LearningObjectives []string `json:"learningObjectives"`
}

// Validate checks the request.
func (r *GenerateRequest) Validate() error {
	if strings.TrimSpace(r.CourseTitle) == "" {
		return invalid("Invalid or missing 'courseTitle'")
	}
	if strings.TrimSpace(r.ChapterTitle) == "" {
		return invalid("Invalid or missing 'chapterTitle'")
	}
	if r.LearningObjectives == nil {
		return invalid("'learningObjectives' must be an array of strings")
	}
	return nil
}

// Points returns the non-blank learning objectives.
func (r *GenerateRequest) Points() []string {
	points := make([]string, 0, len(r.LearningObjectives))
	for _, p := range r.LearningObjectives {
		if strings.TrimSpace(p) != "" {
			points = append(points, p)
		}
	}
	return points
}

// CRMRequest asks for a go-to-market pack for an outlined course.
type CRMRequest struct {
	CourseTitle string   `json:"courseTitle"`
	Outline     *Outline `json:"outline"`
}

// Validate checks the request.
func (r *CRMRequest) Validate() error {
	if strings.TrimSpace(r.CourseTitle) == "" || r.Outline == nil || r.Outline.Chapters == nil {
		return invalid("Invalid payload")
	}
	return nil
}

// Documentation scopes.
const (
	ScopeBoth   = "both"
	ScopeRecent = "recent"
	ScopePast   = "past"
)

// DocsRequest asks for a documentation page.
type DocsRequest struct {
	Topic               string `json:"topic"`
	IncludeCodeExamples *bool  `json:"includeCodeExamples,omitempty"`
	Language            string `json:"language,omitempty"`
	Scope               string `json:"scope,omitempty"`
}

// Validate checks the request.
func (r *DocsRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return invalid("Invalid or missing 'topic'")
	}
	return nil
}

func (r *DocsRequest) withDefaults() DocsRequest {
	out := *r
	if out.IncludeCodeExamples == nil {
		yes := true
		out.IncludeCodeExamples = &yes
	}
	if strings.TrimSpace(out.Language) == "" {
		out.Language = "javascript"
	}
	if out.Scope == "" {
		out.Scope = ScopeBoth
	}
	return out
}

func scopeText(scope string) string {
	switch scope {
	case ScopeRecent:
		return "emphasize developments from the last 12-18 months"
	case ScopePast:
		return "focus on fundamental, historical context and stable practices"
	default:
		return "cover fundamentals and any recent changes (last 12-18 months)"
	}
}
