package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/middleware"
	"edulearn-backend/internal/models"
	"edulearn-backend/internal/repository"
	"edulearn-backend/internal/services"
)

type quizRepository interface {
	Create(ctx context.Context, q *models.Quiz) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	ListByUser(ctx context.Context, userID uuid.UUID, documentID *uuid.UUID) ([]*models.Quiz, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
}

type resultWriter interface {
	Create(ctx context.Context, res *models.ExamResult) error
}

type quizCounter interface {
	RecordQuizResult(ctx context.Context, userID uuid.UUID, total, correct int, day time.Time) error
}

type quizGenerator interface {
	Generate(ctx context.Context, text string, difficulty models.Difficulty, count int, title string) ([]models.Question, error)
}

type weakTopicDiagnoser interface {
	Diagnose(ctx context.Context, wrong []models.WrongAnswer, summary string) []string
}

type QuizHandler struct {
	quizRepo   quizRepository
	docRepo    documentReader
	resultRepo resultWriter
	counter    quizCounter
	engine     quizGenerator
	diagnoser  weakTopicDiagnoser
	log        *logger.Logger
}

func NewQuizHandler(
	quizRepo quizRepository,
	docRepo documentReader,
	resultRepo resultWriter,
	counter quizCounter,
	engine quizGenerator,
	diagnoser weakTopicDiagnoser,
	log *logger.Logger,
) *QuizHandler {
	return &QuizHandler{
		quizRepo:   quizRepo,
		docRepo:    docRepo,
		resultRepo: resultRepo,
		counter:    counter,
		engine:     engine,
		diagnoser:  diagnoser,
		log:        log,
	}
}

// Create generates a quiz from a processed document. Generation runs inside
// the request.
func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.DocumentID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"document_id": "Document ID is required"}, r))
		return
	}
	if err := services.ValidateQuizParams(req.Difficulty, req.QuestionCount); err != nil {
		handleServiceError(w, r, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	doc, err := h.docRepo.GetByID(r.Context(), req.DocumentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.log.Error("failed to load document", "document_id", req.DocumentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load document", r))
		return
	}
	if err != nil || doc.UserID != userID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Document not found", r))
		return
	}
	if doc.ExtractedText == nil || strings.TrimSpace(*doc.ExtractedText) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"document_id": "Document has no extracted text yet"}, r))
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = doc.Title + " Quiz"
	}

	questions, err := h.engine.Generate(r.Context(), *doc.ExtractedText, req.Difficulty, req.QuestionCount, title)
	if err != nil {
		h.log.Warn("quiz generation failed", "document_id", doc.ID, "error", err)
		handleServiceError(w, r, err)
		return
	}

	quiz := &models.Quiz{
		UserID:     userID,
		DocumentID: doc.ID,
		Title:      title,
		Difficulty: req.Difficulty,
		Questions:  questions,
	}
	if err := h.quizRepo.Create(r.Context(), quiz); err != nil {
		h.log.Error("failed to save quiz", "document_id", doc.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save quiz", r))
		return
	}

	writeJSON(w, http.StatusCreated, quiz.WithoutAnswers())
}

func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	var documentID *uuid.UUID
	if v := r.URL.Query().Get("document_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid document ID", r))
			return
		}
		documentID = &id
	}

	userID := middleware.GetUserID(r.Context())
	quizzes, err := h.quizRepo.ListByUser(r.Context(), userID, documentID)
	if err != nil {
		h.log.Error("failed to list quizzes", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list quizzes", r))
		return
	}

	hidden := make([]*models.Quiz, len(quizzes))
	for i, q := range quizzes {
		hidden[i] = q.WithoutAnswers()
	}
	writeJSON(w, http.StatusOK, models.QuizListResponse{Quizzes: hidden, Total: len(hidden)})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("include_answers") == "true" {
		writeJSON(w, http.StatusOK, quiz)
		return
	}
	writeJSON(w, http.StatusOK, quiz.WithoutAnswers())
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}

	if err := h.quizRepo.Delete(r.Context(), quiz.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submit grades the answers, diagnoses weak topics when something was wrong
// and stores the result.
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.ExamSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}

	result, wrong := services.Grade(quiz, req.Answers, req.TimeTaken)

	if len(wrong) > 0 {
		doc, err := h.docRepo.GetByID(r.Context(), quiz.DocumentID)
		switch {
		case err != nil:
			h.log.Warn("skipping weak topic diagnosis", "quiz_id", quiz.ID, "error", err)
		case doc.Summary != nil && strings.TrimSpace(*doc.Summary) != "":
			result.WeakTopics = h.diagnoser.Diagnose(r.Context(), wrong, *doc.Summary)
		}
	}

	if err := h.resultRepo.Create(r.Context(), result); err != nil {
		h.log.Error("failed to save exam result", "quiz_id", quiz.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save result", r))
		return
	}

	if err := h.counter.RecordQuizResult(r.Context(), result.UserID, result.TotalQuestions, result.CorrectAnswers, result.CompletedAt); err != nil {
		h.log.Warn("failed to update quiz counters", "user_id", result.UserID, "error", err)
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *QuizHandler) ownedQuiz(w http.ResponseWriter, r *http.Request) (*models.Quiz, bool) {
	id, ok := parseIDParam(w, r, "id", "quiz")
	if !ok {
		return nil, false
	}

	quiz, err := h.quizRepo.GetByID(r.Context(), id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.log.Error("failed to load quiz", "quiz_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load quiz", r))
		return nil, false
	}
	if err != nil || quiz.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Quiz not found", r))
		return nil, false
	}
	return quiz, true
}
