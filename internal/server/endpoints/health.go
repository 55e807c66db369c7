package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/credits"
	"github.com/jackzampolin/quill/internal/providers"
	"github.com/jackzampolin/quill/internal/svcctx"
	"github.com/jackzampolin/quill/version"
)

// readyTimeout bounds the LLM probe in /ready.
const readyTimeout = 5 * time.Second

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresLLM() bool { return false }

// handler godoc
//
//	@Summary		Liveness check
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyResponse reports whether the LLM provider can be reached.
type ReadyResponse struct {
	Status string   `json:"status"`
	LLM    LLMProbe `json:"llm"`
}

// LLMProbe is the result of listing the provider's models.
type LLMProbe struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	Error      string `json:"error,omitempty"`
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresLLM() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	Probes the LLM provider's models endpoint with a 5 second timeout
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	ReadyResponse
//	@Failure		503	{object}	ReadyResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ok"}

	registry := svcctx.RegistryFrom(r.Context())
	if registry == nil || registry.LLM() == nil {
		resp.Status = "degraded"
		resp.LLM.Error = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.LLM.Provider = registry.Name()
	resp.LLM.Configured = true
	if g, ok := registry.LLM().(*providers.GroqClient); ok {
		resp.LLM.Configured = g.Configured()
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := registry.HealthCheck(ctx); err != nil {
		resp.Status = "degraded"
		resp.LLM.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.LLM.Reachable = true
	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes the LLM provider)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReadyResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:    %s\n", resp.Status)
			fmt.Printf("Provider:  %s\n", resp.LLM.Provider)
			fmt.Printf("Reachable: %v\n", resp.LLM.Reachable)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server      string        `json:"server"`
	Version     string        `json:"version"`
	Environment string        `json:"environment"`
	ConfigFile  string        `json:"config_file,omitempty"`
	Home        string        `json:"home,omitempty"`
	LLM         LLMStatus     `json:"llm"`
	Credits     CreditsStatus `json:"credits"`
	Journal     bool          `json:"journal"`
}

// LLMStatus shows the active chat client.
type LLMStatus struct {
	Provider   string   `json:"provider"`
	BaseURL    string   `json:"base_url,omitempty"`
	Model      string   `json:"model,omitempty"`
	Fallbacks  []string `json:"fallbacks,omitempty"`
	Configured bool     `json:"configured"`
}

// CreditsStatus shows the ledger configuration.
type CreditsStatus struct {
	Initial      int64         `json:"initial"`
	Costs        credits.Costs `json:"costs"`
	TopupAllowed bool          `json:"topup_allowed"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresLLM() bool { return false }

// handler godoc
//
//	@Summary		Server status
//	@Description	Configuration summary: environment, LLM client, credit costs
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Server:  "running",
		Version: version.GitRelease,
	}

	if mgr := svcctx.ConfigManagerFrom(ctx); mgr != nil {
		resp.Environment = mgr.Get().Environment
		resp.ConfigFile = mgr.ConfigFileUsed()
	}

	if h := svcctx.HomeFrom(ctx); h != nil {
		resp.Home = h.Path()
	}

	if registry := svcctx.RegistryFrom(ctx); registry != nil {
		resp.LLM.Provider = registry.Name()
		if g, ok := registry.LLM().(*providers.GroqClient); ok {
			resp.LLM.BaseURL = g.BaseURL()
			resp.LLM.Model = g.Model()
			resp.LLM.Fallbacks = g.ModelsToTry("")[1:]
			resp.LLM.Configured = g.Configured()
		} else {
			resp.LLM.Configured = registry.LLM() != nil
		}
	}

	if bank := svcctx.BankFrom(ctx); bank != nil {
		resp.Credits = CreditsStatus{
			Initial:      bank.InitialCredits(),
			Costs:        bank.Costs(),
			TopupAllowed: bank.TopupAllowed(),
		}
	}

	resp.Journal = svcctx.LLMCallStoreFrom(ctx) != nil

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
