package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"WalletGuard/internal/guard"
	"WalletGuard/internal/ledger"
	"WalletGuard/internal/payment"
	"WalletGuard/internal/store"
)

// badRequest is a request-level validation failure detected by the API itself.
type badRequest string

func (e badRequest) Error() string { return string(e) }

// statusFor maps an error to its HTTP status and the message shown to the caller.
func statusFor(err error) (int, string) {
	var (
		br        badRequest
		submitErr *ledger.SubmitError
	)
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.Error()
	case guard.IsInputError(err), errors.Is(err, payment.ErrSignedTxRequired), errors.Is(err, ledger.ErrSignedTxRequired):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, guard.ErrContactNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, guard.ErrUnauthorizedEmergencyContact):
		return http.StatusForbidden, guard.ErrUnauthorizedEmergencyContact.Error()
	case errors.As(err, &submitErr):
		return http.StatusBadGateway, submitErr.Error()
	case errors.Is(err, payment.ErrSubmitFailed):
		return http.StatusBadGateway, payment.ErrSubmitFailed.Error()
	case errors.Is(err, store.ErrTooManyConflicts):
		return http.StatusConflict, "Too many concurrent updates, please retry"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// rootMessage returns the innermost error's text so wrapping context added by
// lower layers never leaks into user-facing messages.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	Error(w, status, msg)
}
