package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"condoledger/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps core sentinels to HTTP statuses. Anything
// unrecognized is a 500; transient storage failures are 503 so clients know
// a retry with the same transaction ref is safe.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrEmptyTransactionRef):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry with the same transaction ref")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
