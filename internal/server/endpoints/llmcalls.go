package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/llmcall"
	"github.com/jackzampolin/quill/internal/svcctx"
)

// LLMCallsResponse is one page of the journal plus its token usage.
type LLMCallsResponse struct {
	Calls []llmcall.Call `json:"calls"`
	Total int            `json:"total"`
	Usage CallUsage      `json:"usage"`
}

// CallUsage sums a page of calls.
type CallUsage struct {
	Failed       int `json:"failed"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	LatencyMs    int `json:"latency_ms"`
}

func summarize(calls []llmcall.Call) CallUsage {
	var u CallUsage
	for _, c := range calls {
		if !c.Success {
			u.Failed++
		}
		u.InputTokens += c.InputTokens
		u.OutputTokens += c.OutputTokens
		u.LatencyMs += c.LatencyMs
	}
	return u
}

// printCalls writes one row per call for --output text.
func printCalls(resp LLMCallsResponse) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOPERATION\tMODEL\tTOKENS\tLATENCY\tSTATUS")
	for _, c := range resp.Calls {
		status := "ok"
		if !c.Success {
			status = "failed: " + c.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%dms\t%s\n",
			c.Timestamp.Local().Format(time.DateTime), c.Operation, c.Model,
			c.InputTokens, c.OutputTokens, c.LatencyMs, status)
	}
	fmt.Fprintf(tw, "\n%d calls, %d failed, %d input / %d output tokens\n",
		resp.Total, resp.Usage.Failed, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return tw.Flush()
}

// LLMCallResponse contains a single LLM call.
type LLMCallResponse struct {
	Call *llmcall.Call `json:"call,omitempty"`
}

// LLMCallCountsResponse contains call counts per operation.
type LLMCallCountsResponse struct {
	Counts map[string]int `json:"counts"`
}

const defaultCallLimit = 100

// parseCallFilter reads journal filters from the query string.
func parseCallFilter(q url.Values) (llmcall.QueryFilter, error) {
	filter := llmcall.QueryFilter{
		Operation: q.Get("operation"),
		Provider:  q.Get("provider"),
		Model:     q.Get("model"),
	}

	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid success filter: %q must be true or false", v)
		}
		filter.Success = &b
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid limit: %q must be an integer", v)
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid offset: %q must be an integer", v)
		}
		filter.Offset = offset
	}
	for name, dst := range map[string]**time.Time{"after": &filter.After, "before": &filter.Before} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s time: %q must be RFC3339 format (e.g., 2026-01-15T00:00:00Z)", name, v)
		}
		*dst = &t
	}
	return filter, nil
}

// ListLLMCallsEndpoint handles GET /api/llmcalls.
type ListLLMCallsEndpoint struct{}

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresLLM() bool { return false }

func (e *ListLLMCallsEndpoint) CommandGroup() (string, string) {
	return "llmcalls", "Inspect the LLM call journal"
}

// handler godoc
//
//	@Summary		List LLM calls
//	@Description	Journal of LLM calls, newest first, with optional filters and token usage for the page
//	@Tags			llmcalls
//	@Produce		json
//	@Param			operation	query		string	false	"Filter by operation (discover, outline, generate, crm, docs)"
//	@Param			provider	query		string	false	"Filter by provider"
//	@Param			model		query		string	false	"Filter by model"
//	@Param			success		query		bool	false	"Filter by success status (true or false)"
//	@Param			limit		query		int		false	"Max results (default 100)"
//	@Param			offset		query		int		false	"Result offset"
//	@Param			after		query		string	false	"Filter calls after this RFC3339 timestamp"
//	@Param			before		query		string	false	"Filter calls before this RFC3339 timestamp"
//	@Success		200			{object}	LLMCallsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/llmcalls [get]
func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusNotFound, "LLM call journal is disabled")
		return
	}

	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultCallLimit
	}

	calls, err := store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if calls == nil {
		calls = []llmcall.Call{}
	}

	writeJSON(w, http.StatusOK, LLMCallsResponse{
		Calls: calls,
		Total: len(calls),
		Usage: summarize(calls),
	})
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var operation, provider, model string
	var limit, offset int
	var successOnly, failedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			params := url.Values{}
			for k, v := range map[string]string{"operation": operation, "provider": provider, "model": model} {
				if v != "" {
					params.Set(k, v)
				}
			}
			if successOnly {
				params.Set("success", "true")
			}
			if failedOnly {
				params.Set("success", "false")
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				params.Set("offset", strconv.Itoa(offset))
			}

			path := "/api/llmcalls"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp LLMCallsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatText {
				return printCalls(resp)
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&operation, "operation", "", "Filter by operation")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model")
	cmd.Flags().BoolVar(&successOnly, "success", false, "Only show successful calls")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed calls")
	cmd.MarkFlagsMutuallyExclusive("success", "failed")
	cmd.Flags().IntVar(&limit, "limit", defaultCallLimit, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	return cmd
}

// GetLLMCallEndpoint handles GET /api/llmcalls/{id}.
type GetLLMCallEndpoint struct{}

func (e *GetLLMCallEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/{id}", e.handler
}

func (e *GetLLMCallEndpoint) RequiresLLM() bool { return false }

func (e *GetLLMCallEndpoint) CommandGroup() (string, string) {
	return "llmcalls", "Inspect the LLM call journal"
}

// handler godoc
//
//	@Summary		Get an LLM call
//	@Description	Get a single journaled LLM call by ID
//	@Tags			llmcalls
//	@Produce		json
//	@Param			id	path		string	true	"LLM call ID"
//	@Success		200	{object}	LLMCallResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/llmcalls/{id} [get]
func (e *GetLLMCallEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusNotFound, "LLM call journal is disabled")
		return
	}

	call, err := store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if call == nil {
		writeError(w, http.StatusNotFound, "LLM call not found")
		return
	}

	writeJSON(w, http.StatusOK, LLMCallResponse{Call: call})
}

func (e *GetLLMCallEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get an LLM call by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LLMCallResponse
			if err := client.Get(cmd.Context(), "/api/llmcalls/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp.Call)
		},
	}
}

// LLMCallCountsEndpoint handles GET /api/llmcalls/counts.
type LLMCallCountsEndpoint struct{}

func (e *LLMCallCountsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/counts", e.handler
}

func (e *LLMCallCountsEndpoint) RequiresLLM() bool { return false }

func (e *LLMCallCountsEndpoint) CommandGroup() (string, string) {
	return "llmcalls", "Inspect the LLM call journal"
}

// handler godoc
//
//	@Summary		Count LLM calls by operation
//	@Description	Number of journaled calls per operation. Accepts the same filters as the list endpoint.
//	@Tags			llmcalls
//	@Produce		json
//	@Param			provider	query		string	false	"Filter by provider"
//	@Param			model		query		string	false	"Filter by model"
//	@Param			success		query		bool	false	"Filter by success status"
//	@Param			after		query		string	false	"RFC3339 lower bound"
//	@Param			before		query		string	false	"RFC3339 upper bound"
//	@Success		200			{object}	LLMCallCountsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/llmcalls/counts [get]
func (e *LLMCallCountsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusNotFound, "LLM call journal is disabled")
		return
	}

	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := store.CountByOperation(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LLMCallCountsResponse{Counts: counts})
}

func (e *LLMCallCountsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Count LLM calls by operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/llmcalls/counts"
			if since > 0 {
				path += "?after=" + url.QueryEscape(time.Now().Add(-since).UTC().Format(time.RFC3339))
			}
			client := api.NewClient(getServerURL())
			var resp LLMCallCountsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp.Counts)
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "Only count calls newer than this (e.g. 24h)")
	return cmd
}
