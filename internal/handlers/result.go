package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/middleware"
	"edulearn-backend/internal/models"
	"edulearn-backend/internal/repository"
)

type resultRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExamResult, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ExamResult, error)
}

type ResultHandler struct {
	resultRepo resultRepository
	log        *logger.Logger
}

func NewResultHandler(resultRepo resultRepository, log *logger.Logger) *ResultHandler {
	return &ResultHandler{resultRepo: resultRepo, log: log}
}

func (h *ResultHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	results, err := h.resultRepo.ListByUser(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to list results", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list results", r))
		return
	}
	writeJSON(w, http.StatusOK, models.ExamResultListResponse{Results: results, Total: len(results)})
}

func (h *ResultHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "result")
	if !ok {
		return
	}

	result, err := h.resultRepo.GetByID(r.Context(), id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.log.Error("failed to load result", "result_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load result", r))
		return
	}
	if err != nil || result.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Result not found", r))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
