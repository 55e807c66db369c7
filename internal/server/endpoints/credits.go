package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/svcctx"
)

// CreditsResponse is the current balance.
type CreditsResponse struct {
	Credits      int64 `json:"credits"`
	TopupAllowed *bool `json:"topupAllowed,omitempty"`
}

// TopupRequest adds credits. Amount is floored; negatives add nothing.
// Numeric strings such as "5" are accepted.
type TopupRequest struct {
	Amount json.Number `json:"amount" swaggertype:"number"`
}

// amount returns the requested amount, or 0 when it is not a number.
func (r TopupRequest) amount() float64 {
	f, err := r.Amount.Float64()
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return f
}

// GetCreditsEndpoint handles GET /api/credits.
type GetCreditsEndpoint struct{}

func (e *GetCreditsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/credits", e.handler
}

func (e *GetCreditsEndpoint) RequiresLLM() bool { return false }

// handler godoc
//
//	@Summary		Get credit balance
//	@Description	Reads the balance from the signed credit cookie. Clients without a valid cookie get the initial balance.
//	@Tags			credits
//	@Produce		json
//	@Success		200	{object}	CreditsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/credits [get]
func (e *GetCreditsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bank := svcctx.BankFrom(r.Context())
	if bank == nil {
		writeError(w, http.StatusInternalServerError, "credit ledger not available")
		return
	}

	allowed := bank.TopupAllowed()
	writeJSON(w, http.StatusOK, CreditsResponse{
		Credits:      bank.LedgerFor(w, r).Balance(),
		TopupAllowed: &allowed,
	})
}

func (e *GetCreditsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "credits",
		Short: "Show the current credit balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp CreditsResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/credits", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// TopupEndpoint handles POST /api/credits.
type TopupEndpoint struct{}

func (e *TopupEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/credits", e.handler
}

func (e *TopupEndpoint) RequiresLLM() bool { return false }

// handler godoc
//
//	@Summary		Top up credits
//	@Description	Adds credits outside production, or when top-ups are explicitly enabled
//	@Tags			credits
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TopupRequest	true	"Amount to add"
//	@Success		200		{object}	CreditsResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/credits [post]
func (e *TopupEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bank := svcctx.BankFrom(ctx)
	if bank == nil {
		writeError(w, http.StatusInternalServerError, "credit ledger not available")
		return
	}
	if !bank.TopupAllowed() {
		writeError(w, http.StatusForbidden, "Top-up disabled")
		return
	}

	// An unreadable body tops up nothing.
	var req TopupRequest
	_ = decodeBody(r, &req)

	balance, err := bank.LedgerFor(w, r).Topup(req.amount())
	if err != nil {
		svcctx.LoggerFrom(ctx).Error("credit top-up failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update credits")
		return
	}
	writeJSON(w, http.StatusOK, CreditsResponse{Credits: balance})
}

func (e *TopupEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "topup <amount>",
		Short: "Add credits (development only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amount float64
			if _, err := fmt.Sscan(args[0], &amount); err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			var resp CreditsResponse
			if err := api.NewClient(getServerURL()).Post(cmd.Context(), "/api/credits", TopupRequest{Amount: json.Number(strconv.FormatFloat(amount, 'f', -1, 64))}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
