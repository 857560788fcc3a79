package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"pocket/internal/core"
	"pocket/internal/log"
	"pocket/internal/remote"
	"pocket/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// errorStatus maps service errors to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrAccountNotFound), errors.Is(err, services.ErrRuleNotFound):
		return http.StatusNotFound
	case core.IsValidation(err), errors.Is(err, services.ErrMissingID):
		return http.StatusUnprocessableEntity
	case remote.IsRemote(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server-side failures are
// logged and their details withheld.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	switch status {
	case http.StatusServiceUnavailable:
		log.FromContext(r.Context()).WarnContext(r.Context(), "Remote store request failed", log.FieldError, err)
		writeError(w, status, "remote store unavailable, please retry")
	case http.StatusInternalServerError:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", log.FieldError, err)
		writeError(w, status, "internal error")
	default:
		writeError(w, status, err.Error())
	}
}
