package api

import (
	"errors"
	"net/http"

	repository "github.com/legalize2/location-tracker-app/internal/adapters/repository"
	service "github.com/legalize2/location-tracker-app/internal/app"
)

// writeDomainError maps pipeline error kinds onto HTTP statuses:
// validation 400, not found 404, backpressure 429, storage 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "storage_error", err)
	}
}
