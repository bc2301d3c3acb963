package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"edulearn-backend/internal/middleware"
	"edulearn-backend/internal/models"
	"edulearn-backend/internal/repository"
	"edulearn-backend/internal/services"
	"edulearn-backend/internal/worker"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return errorRespWithFields(code, message, nil, r)
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *services.ValidationError
		conflictErr   *services.ConflictError
		notFoundErr   *services.NotFoundError
		upstreamErr   *services.UpstreamError
		generationErr *services.GenerationError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflictErr.Message, r))
	case errors.Is(err, worker.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Document is already being processed", r))
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFoundErr.Message, r))
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Resource not found", r))
	case errors.Is(err, services.ErrNoQuestions):
		writeJSON(w, http.StatusBadGateway, errorResp("GENERATION_FAILED", "No quiz questions could be generated from this document", r))
	case errors.As(err, &upstreamErr):
		writeJSON(w, http.StatusBadGateway, errorResp("GENERATION_FAILED", upstreamErr.Message, r))
	case errors.As(err, &generationErr):
		writeJSON(w, http.StatusBadGateway, errorResp("GENERATION_FAILED", "The generation service is unavailable", r))
	case errors.Is(err, worker.ErrShuttingDown):
		writeJSON(w, http.StatusServiceUnavailable, errorResp("UNAVAILABLE", "Server is shutting down", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

// parseIDParam reads a uuid route parameter, writing a 400 when it is malformed.
func parseIDParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid "+label+" ID", r))
		return uuid.Nil, false
	}
	return id, true
}
