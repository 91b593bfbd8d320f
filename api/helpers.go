package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stormline/dispatch/internal/dispatch"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, map[string]string{"error": msg}, status)
}

// declineReason maps a dispatch guard violation to its caller-distinguishable
// reason string and HTTP status. Anything outside the taxonomy is a real
// fault and surfaces as a 500.
func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, dispatch.ErrNotFound):
		writeError(w, "not found", http.StatusNotFound)
	case errors.Is(err, dispatch.ErrNoLongerAvailable):
		writeError(w, "no longer available", http.StatusConflict)
	case errors.Is(err, dispatch.ErrNotAssigned):
		writeError(w, "not assigned to you", http.StatusForbidden)
	case errors.Is(err, dispatch.ErrInvalidStatus):
		writeError(w, "invalid status value", http.StatusBadRequest)
	case errors.Is(err, dispatch.ErrAlreadySubmitted):
		writeError(w, "already submitted", http.StatusConflict)
	default:
		logger.Error("dispatch operation failed", "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}
