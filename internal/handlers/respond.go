package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/otcheredev/ris-imaging-service/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidFormat):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrIncompleteAnnotation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.Is(err, services.ErrExtractionFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrStorageFailure):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
