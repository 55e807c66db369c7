package endpoints

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/prompts"
	"github.com/jackzampolin/quill/internal/svcctx"
)

// PromptsListResponse contains all prompts.
type PromptsListResponse struct {
	Prompts []prompts.EmbeddedPrompt `json:"prompts"`
}

// ListPromptsEndpoint handles GET /api/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresLLM() bool { return false }

func (e *ListPromptsEndpoint) CommandGroup() (string, string) {
	return "prompts", "Inspect prompt templates"
}

// handler godoc
//
//	@Summary		List all prompts
//	@Description	Every registered prompt template with its variables and content hash
//	@Tags			prompts
//	@Produce		json
//	@Param			prefix	query		string	false	"Only keys starting with this prefix (e.g. course.outline)"
//	@Success		200		{object}	PromptsListResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/prompts [get]
func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.PromptResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}

	prefix := r.URL.Query().Get("prefix")
	resp := PromptsListResponse{Prompts: []prompts.EmbeddedPrompt{}}
	for _, p := range resolver.All() {
		if strings.HasPrefix(p.Key, prefix) {
			resp.Prompts = append(resp.Prompts, p)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var prefix string
	var keysOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/prompts"
			if prefix != "" {
				path += "?prefix=" + url.QueryEscape(prefix)
			}
			client := api.NewClient(getServerURL())
			var resp PromptsListResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if keysOnly {
				keys := make([]string, len(resp.Prompts))
				for i, p := range resp.Prompts {
					keys[i] = p.Key
				}
				return api.Output(keys)
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Filter by key prefix")
	cmd.Flags().BoolVar(&keysOnly, "keys", false, "Only print prompt keys")
	return cmd
}

// GetPromptEndpoint handles GET /api/prompts/{key...}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{key...}", e.handler
}

func (e *GetPromptEndpoint) RequiresLLM() bool { return false }

func (e *GetPromptEndpoint) CommandGroup() (string, string) {
	return "prompts", "Inspect prompt templates"
}

// handler godoc
//
//	@Summary		Get a prompt
//	@Description	Get a specific prompt by key
//	@Tags			prompts
//	@Produce		json
//	@Param			key	path		string	true	"Prompt key (e.g., course.outline.user)"
//	@Success		200	{object}	prompts.EmbeddedPrompt
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/prompts/{key} [get]
func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "invalid prompt key")
		return
	}

	resolver := svcctx.PromptResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}

	p, ok := resolver.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, "prompt not found: "+key)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a prompt by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var p prompts.EmbeddedPrompt
			if err := client.Get(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0]), &p); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatText {
				return api.OutputText("text", p.Text)
			}
			return api.Output(p)
		},
	}
}
