package endpoints

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/course"
	"github.com/jackzampolin/quill/internal/credits"
	"github.com/jackzampolin/quill/internal/svcctx"
)

// validator is implemented by every course request.
type validator interface {
	Validate() error
}

// serveBillable decodes and validates req, then runs call under the client's
// ledger. The balance is checked before the call and debited only after it
// succeeds.
func serveBillable[T any](w http.ResponseWriter, r *http.Request, op credits.Operation, req validator, call func(context.Context, *course.Service) (T, error)) {
	ctx := r.Context()
	logger := svcctx.LoggerFrom(ctx)

	if !decodeJSON(w, r, req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bank := svcctx.BankFrom(ctx)
	svc := svcctx.CoursesFrom(ctx)
	if bank == nil || svc == nil {
		writeError(w, http.StatusInternalServerError, "server not fully initialized")
		return
	}

	var result T
	remaining, err := bank.LedgerFor(w, r).Spend(bank.Costs().MustFor(op), func() error {
		var err error
		result, err = call(ctx, svc)
		return err
	})

	switch {
	case errors.Is(err, credits.ErrInsufficientCredits):
		logger.Info("insufficient credits", "operation", op, "balance", remaining)
		writeError(w, http.StatusPaymentRequired, "Not enough credits")
	case course.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		logger.Error("billable call failed", "operation", op, "error", err)
		writeError(w, http.StatusInternalServerError, errorMessage(err))
	default:
		w.Header().Set(api.CreditsHeader, strconv.FormatInt(remaining, 10))
		writeJSON(w, http.StatusOK, result)
	}
}

// errorMessage maps internal errors to the message shown to clients.
func errorMessage(err error) string {
	if errors.Is(err, course.ErrInvalidResponse) {
		return "Model returned an invalid response"
	}
	return err.Error()
}
