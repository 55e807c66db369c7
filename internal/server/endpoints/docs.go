package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/course"
	"github.com/jackzampolin/quill/internal/svcctx"
)

// DocsEndpoint handles POST /api/docs. It is not billed.
type DocsEndpoint struct{}

func (e *DocsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/docs", e.handler
}

func (e *DocsEndpoint) RequiresLLM() bool { return true }

// handler godoc
//
//	@Summary		Write a documentation page
//	@Description	Writes a reference page for a topic, optionally with code examples.
//	@Tags			course
//	@Accept			json
//	@Produce		json
//	@Param			request	body		course.DocsRequest	true	"Topic and options"
//	@Success		200		{object}	course.Doc
//	@Failure		400		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/docs [post]
func (e *DocsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req course.DocsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc := svcctx.CoursesFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusInternalServerError, "course service not available")
		return
	}

	doc, err := svc.Docs(r.Context(), req)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("docs generation failed", "topic", req.Topic, "error", err)
		writeError(w, http.StatusInternalServerError, errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (e *DocsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var language, scope string
	var noCode bool
	cmd := &cobra.Command{
		Use:   "docs <topic>",
		Short: "Write a documentation page for a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := course.DocsRequest{Topic: args[0], Language: language, Scope: scope}
			if noCode {
				no := false
				req.IncludeCodeExamples = &no
			}
			client := api.NewClient(getServerURL())
			var doc course.Doc
			if err := client.Post(cmd.Context(), "/api/docs", req, &doc); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatText {
				return api.OutputText("content", "# "+doc.Title+"\n\n"+doc.Content)
			}
			return api.Output(doc)
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Language for code examples (default: javascript)")
	cmd.Flags().StringVar(&scope, "scope", "", "recent, past or both (default: both)")
	cmd.Flags().BoolVar(&noCode, "no-code", false, "Omit code examples")
	return cmd
}
