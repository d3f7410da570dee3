package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
)

// httpStatus maps mesh error kinds to HTTP status codes. Validation maps to
// 400, quota to 429, budget to 402; everything else is an internal error.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, mesherrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, mesherrors.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, mesherrors.ErrBudgetExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, mesherrors.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, mesherrors.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		slog.Error("Unexpected mesh error", "error", err)
		return http.StatusInternalServerError
	}
}
