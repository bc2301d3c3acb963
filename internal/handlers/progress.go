package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/middleware"
	"edulearn-backend/internal/models"
)

const maxStudyMinutesPerLog = 24 * 60

type progressRepository interface {
	Overview(ctx context.Context, userID uuid.UUID) (*models.ProgressOverview, error)
	LogActivity(ctx context.Context, userID uuid.UUID, studyTime int, day time.Time) (int, error)
}

type ProgressHandler struct {
	progressRepo progressRepository
	log          *logger.Logger
}

func NewProgressHandler(progressRepo progressRepository, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{progressRepo: progressRepo, log: log}
}

func (h *ProgressHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	overview, err := h.progressRepo.Overview(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to load progress overview", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load progress", r))
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// LogActivity adds study minutes to today and advances the streak.
func (h *ProgressHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	var req models.LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.StudyTime < 0 || req.StudyTime > maxStudyMinutesPerLog {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"study_time": "Study time must be between 0 and 1440 minutes"}, r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	streak, err := h.progressRepo.LogActivity(r.Context(), userID, req.StudyTime, time.Now().UTC())
	if err != nil {
		h.log.Error("failed to log activity", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to log activity", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Activity logged successfully",
		"study_streak": streak,
	})
}
