package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/course"
	"github.com/jackzampolin/quill/internal/credits"
)

// ContentResponse carries generated markdown.
type ContentResponse struct {
	Content string `json:"content"`
}

// reportCredits prints the remaining balance to stderr after a billable call.
func reportCredits(client *api.Client) {
	if n := client.LastCredits(); n >= 0 {
		fmt.Fprintf(os.Stderr, "credits remaining: %d\n", n)
	}
}

// DiscoverEndpoint handles POST /api/discover.
type DiscoverEndpoint struct{}

func (e *DiscoverEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/discover", e.handler
}

func (e *DiscoverEndpoint) RequiresLLM() bool { return true }

// handler godoc
//
//	@Summary		Discover course opportunities
//	@Description	Suggests 3-5 marketable course or ebook titles for a topic. Costs credits.
//	@Tags			course
//	@Accept			json
//	@Produce		json
//	@Param			request	body		course.DiscoverRequest	true	"Topic"
//	@Success		200		{array}		string
//	@Header			200		{integer}	X-Credits-Remaining	"Balance after the call"
//	@Failure		400		{object}	ErrorResponse
//	@Failure		402		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/discover [post]
func (e *DiscoverEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req course.DiscoverRequest
	serveBillable(w, r, credits.OpDiscover, &req, func(ctx context.Context, svc *course.Service) ([]string, error) {
		return svc.Discover(ctx, req)
	})
}

func (e *DiscoverEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "discover <topic>",
		Short: "Suggest course titles for a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var titles []string
			if err := client.Post(cmd.Context(), "/api/discover", course.DiscoverRequest{Topic: args[0]}, &titles); err != nil {
				return err
			}
			reportCredits(client)
			return api.Output(titles)
		},
	}
}

// OutlineEndpoint handles POST /api/outline.
type OutlineEndpoint struct{}

func (e *OutlineEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/outline", e.handler
}

func (e *OutlineEndpoint) RequiresLLM() bool { return true }

// handler godoc
//
//	@Summary		Outline a course
//	@Description	Produces exactly numChapters chapters, each with a title and summary points. Costs credits.
//	@Tags			course
//	@Accept			json
//	@Produce		json
//	@Param			request	body		course.OutlineRequest	true	"Course title and chapter count (1-50)"
//	@Success		200		{object}	course.Outline
//	@Header			200		{integer}	X-Credits-Remaining	"Balance after the call"
//	@Failure		400		{object}	ErrorResponse
//	@Failure		402		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/outline [post]
func (e *OutlineEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req course.OutlineRequest
	serveBillable(w, r, credits.OpOutline, &req, func(ctx context.Context, svc *course.Service) (*course.Outline, error) {
		return svc.Outline(ctx, req)
	})
}

func (e *OutlineEndpoint) Command(getServerURL func() string) *cobra.Command {
	var chapters int
	cmd := &cobra.Command{
		Use:   "outline <title>",
		Short: "Outline a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := course.OutlineRequest{OpportunityTitle: args[0], NumChapters: float64(chapters)}
			var outline course.Outline
			if err := client.Post(cmd.Context(), "/api/outline", req, &outline); err != nil {
				return err
			}
			reportCredits(client)
			return api.Output(outline)
		},
	}
	cmd.Flags().IntVarP(&chapters, "chapters", "n", 5, "Number of chapters (1-50)")
	return cmd
}

// GenerateEndpoint handles POST /api/generate.
type GenerateEndpoint struct{}

func (e *GenerateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/generate", e.handler
}

func (e *GenerateEndpoint) RequiresLLM() bool { return true }

// handler godoc
//
//	@Summary		Write a chapter
//	@Description	Writes the markdown content of one chapter. Costs credits.
//	@Tags			course
//	@Accept			json
//	@Produce		json
//	@Param			request	body		course.GenerateRequest	true	"Course, chapter and learning objectives"
//	@Success		200		{object}	ContentResponse
//	@Header			200		{integer}	X-Credits-Remaining	"Balance after the call"
//	@Failure		400		{object}	ErrorResponse
//	@Failure		402		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/generate [post]
func (e *GenerateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req course.GenerateRequest
	serveBillable(w, r, credits.OpGenerate, &req, func(ctx context.Context, svc *course.Service) (ContentResponse, error) {
		content, err := svc.Generate(ctx, req)
		return ContentResponse{Content: content}, err
	})
}

func (e *GenerateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var objectives []string
	cmd := &cobra.Command{
		Use:   "generate <course-title> <chapter-title>",
		Short: "Write the content of one chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := course.GenerateRequest{
				CourseTitle:        args[0],
				ChapterTitle:       args[1],
				LearningObjectives: append([]string{}, objectives...),
			}
			var resp ContentResponse
			if err := client.Post(cmd.Context(), "/api/generate", req, &resp); err != nil {
				return err
			}
			reportCredits(client)
			return api.OutputText("content", resp.Content)
		},
	}
	cmd.Flags().StringSliceVarP(&objectives, "objective", "p", nil, "Learning objective (repeatable)")
	return cmd
}

// CRMEndpoint handles POST /api/crm.
type CRMEndpoint struct{}

func (e *CRMEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/crm", e.handler
}

func (e *CRMEndpoint) RequiresLLM() bool { return true }

// handler godoc
//
//	@Summary		Write a go-to-market pack
//	@Description	Landing page copy, email sequence and social posts for an outlined course. Costs credits.
//	@Tags			course
//	@Accept			json
//	@Produce		json
//	@Param			request	body		course.CRMRequest	true	"Course title and outline"
//	@Success		200		{object}	ContentResponse
//	@Header			200		{integer}	X-Credits-Remaining	"Balance after the call"
//	@Failure		400		{object}	ErrorResponse
//	@Failure		402		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/crm [post]
func (e *CRMEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req course.CRMRequest
	serveBillable(w, r, credits.OpCRM, &req, func(ctx context.Context, svc *course.Service) (ContentResponse, error) {
		content, err := svc.CRM(ctx, req)
		return ContentResponse{Content: content}, err
	})
}

func (e *CRMEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outlineFile string
	cmd := &cobra.Command{
		Use:   "crm",
		Short: "Write marketing content for an outline",
		Long: `Reads an outline (as printed by "quill api outline -o json") and writes
landing page copy, an email sequence and social posts for it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outline, err := readOutline(outlineFile)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			req := course.CRMRequest{CourseTitle: outline.Title, Outline: outline}
			var resp ContentResponse
			if err := client.Post(cmd.Context(), "/api/crm", req, &resp); err != nil {
				return err
			}
			reportCredits(client)
			return api.OutputText("content", resp.Content)
		},
	}
	cmd.Flags().StringVarP(&outlineFile, "file", "f", "", "Outline JSON file (default: stdin)")
	return cmd
}
