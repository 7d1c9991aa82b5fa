package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	svc "github.com/jlpedu/enroll/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps the service error taxonomy onto HTTP. Every kind gets a
// distinct code string so clients can decide between retrying
// ("transient"), showing a friendly fully-booked message, or giving up.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{err.Error(), "validation_error"})
	case errors.Is(err, svc.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{err.Error(), "not_found"})
	case errors.Is(err, svc.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{err.Error(), "forbidden"})
	case errors.Is(err, svc.ErrCapacityExceeded):
		writeJSON(w, http.StatusConflict, errorBody{err.Error(), "capacity_exceeded"})
	case errors.Is(err, svc.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{err.Error(), "conflict"})
	case errors.Is(err, svc.ErrTransient):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{err.Error(), "transient"})
	case errors.Is(err, svc.ErrIntegrity):
		// Alert-worthy: the store needs manual reconciliation.
		log.Printf("handlers: integrity error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{err.Error(), "integrity_error"})
	default:
		log.Printf("handlers: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"internal error", "internal"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	// Unknown fields are dropped on purpose; e.g. a client-sent "price" on
	// a booking request must be ignored, not rejected.
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return svc.ErrValidation
	}
	return nil
}
