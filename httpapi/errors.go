package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/core"
	"github.com/workflowai/gateway/store"
)

// writeError renders err as an OpenAI-compatible error envelope, choosing
// the HTTP status from adapter.Kind when err carries one (§7), falling back
// to well-known core sentinels, then 500.
func writeError(w http.ResponseWriter, err error) {
	var aerr *adapter.Error
	if errors.As(err, &aerr) {
		writeErrorStatus(w, aerr.Kind.HTTPStatus(), string(aerr.Kind), aerr.Message)
		return
	}

	switch {
	case errors.Is(err, store.ErrUnauthenticated):
		writeErrorStatus(w, http.StatusUnauthorized, "unauthenticated", "invalid or missing bearer token")
	case errors.Is(err, core.ErrAgentNotFound), errors.Is(err, core.ErrVersionNotFound),
		errors.Is(err, core.ErrDeploymentNotFound), errors.Is(err, core.ErrRunNotFound):
		writeErrorStatus(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, core.ErrInsufficientCredits):
		writeErrorStatus(w, http.StatusPaymentRequired, "insufficient_credits", err.Error())
	case errors.Is(err, core.ErrInvalidConfiguration), errors.Is(err, core.ErrMissingConfiguration):
		writeErrorStatus(w, http.StatusBadRequest, "invalid_request_error", err.Error())
	default:
		writeErrorStatus(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeErrorStatus(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{Message: message, Type: kind, Code: kind}})
}
