package generation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/usage"
	gen "github.com/dmitrymomot/gengate/svc/generation"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed call.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Data: data})
}

func fail(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, Envelope{Error: &ErrorDetail{Code: code, Message: msg}})
}

// failErr maps service errors to a status; anything unknown is a 500.
func failErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usage.ErrAccountNotFound):
		fail(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, plans.ErrUnknownTier), errors.Is(err, plans.ErrPlanNotFound):
		fail(w, http.StatusBadRequest, "unknown_plan", err.Error())
	case errors.Is(err, errBadRequest):
		fail(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		fail(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// resultStatus is the HTTP status of a generation result.
func resultStatus(res *gen.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorKind {
	case gen.KindQuotaExceeded:
		return http.StatusPaymentRequired
	case gen.KindFeatureNotOnPlan:
		return http.StatusForbidden
	case gen.KindTimeout:
		return http.StatusGatewayTimeout
	case gen.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
