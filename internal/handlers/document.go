package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/middleware"
	"edulearn-backend/internal/models"
	"edulearn-backend/internal/repository"
	"edulearn-backend/internal/services"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	sniffLen        = 512
)

type documentRepository interface {
	Create(ctx context.Context, d *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Document, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ResetForReprocess(ctx context.Context, id uuid.UUID) error
}

type documentCounter interface {
	AddDocument(ctx context.Context, userID uuid.UUID, delta int, day time.Time) error
}

type pipelineRunner interface {
	Submit(documentID uuid.UUID, prepare func() error) error
}

type documentChatter interface {
	Ask(ctx context.Context, doc *models.Document, message string, history []models.ChatMessage) (string, error)
}

type DocumentHandler struct {
	docRepo     documentRepository
	counter     documentCounter
	runner      pipelineRunner
	chat        documentChatter
	storagePath string
	maxUpload   int64
	log         *logger.Logger
}

func NewDocumentHandler(
	docRepo documentRepository,
	counter documentCounter,
	runner pipelineRunner,
	chat documentChatter,
	storagePath string,
	maxUploadBytes int64,
	log *logger.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		docRepo:     docRepo,
		counter:     counter,
		runner:      runner,
		chat:        chat,
		storagePath: storagePath,
		maxUpload:   maxUploadBytes,
		log:         log,
	}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limitMB := h.maxUpload / (1024 * 1024)
	tooLarge := fmt.Sprintf("File size exceeds %dMB limit", limitMB)

	if r.ContentLength > h.maxUpload+1024*1024 {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", tooLarge, r))
		return
	}
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", tooLarge, r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", tooLarge, r))
		return
	}

	// Sniff magic bytes rather than trusting the client's content type.
	buf := make([]byte, sniffLen)
	n, _ := io.ReadFull(file, buf)
	fileType := services.DetectFileType(http.DetectContentType(buf[:n]), header.Filename)
	if fileType == "" {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "Supported formats: PDF, DOCX, TXT, JPEG, PNG, GIF, WEBP", r))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read upload", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	docID := uuid.New()
	path, size, err := h.store(userID, docID, header.Filename, file)
	if err != nil {
		h.log.Error("failed to store upload", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	doc := &models.Document{
		ID:       docID,
		UserID:   userID,
		Title:    title,
		FileType: fileType,
		FileSize: size,
		FilePath: path,
	}
	if err := h.docRepo.Create(r.Context(), doc); err != nil {
		os.Remove(path)
		h.log.Error("failed to create document", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create document", r))
		return
	}

	if err := h.counter.AddDocument(r.Context(), userID, 1, time.Now().UTC()); err != nil {
		h.log.Warn("failed to update document counters", "user_id", userID, "error", err)
	}

	if err := h.runner.Submit(doc.ID, nil); err != nil {
		h.log.Warn("document left pending", "document_id", doc.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, doc)
}

// store writes the upload to STORAGE_PATH/users/<uid>/<id><ext>.
func (h *DocumentHandler) store(userID, docID uuid.UUID, filename string, src io.Reader) (string, int64, error) {
	dir := filepath.Join(h.storagePath, "users", userID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, docID.String()+strings.ToLower(filepath.Ext(filename)))
	dst, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}

	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, size, nil
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	userID := middleware.GetUserID(r.Context())
	docs, total, err := h.docRepo.ListByUser(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		h.log.Error("failed to list documents", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list documents", r))
		return
	}

	writeJSON(w, http.StatusOK, models.DocumentListResponse{
		Documents: docs,
		Total:     total,
		Page:      page,
		Limit:     limit,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	if err := h.docRepo.Delete(r.Context(), doc.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.log.Warn("failed to remove stored file", "document_id", doc.ID, "error", err)
	}
	if err := h.counter.AddDocument(r.Context(), doc.UserID, -1, time.Now().UTC()); err != nil {
		h.log.Warn("failed to update document counters", "user_id", doc.UserID, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reprocess clears the derived fields and runs the whole pipeline again. It is
// rejected while a run for the same document is active.
func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	err := h.runner.Submit(doc.ID, func() error {
		return h.docRepo.ResetForReprocess(r.Context(), doc.ID)
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	doc.ExtractedText = nil
	doc.Summary = nil
	doc.PageSummaries = []models.PageSummary{}
	doc.EasyExplanation = nil
	doc.KeyConcepts = []string{}
	doc.WikiContext = []models.WikiEntry{}
	doc.PageCount = 0
	doc.ProcessingStatus = models.StatusPending
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"message": "Message is required"}, r))
		return
	}

	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	reply, err := h.chat.Ask(r.Context(), doc, req.Message, req.History)
	if err != nil {
		h.log.Warn("document chat failed", "document_id", doc.ID, "error", err)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}

// ownedDocument loads the {id} document. Missing and foreign documents are
// both reported as not found.
func (h *DocumentHandler) ownedDocument(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	id, ok := parseIDParam(w, r, "id", "document")
	if !ok {
		return nil, false
	}

	doc, err := h.docRepo.GetByID(r.Context(), id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.log.Error("failed to load document", "document_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load document", r))
		return nil, false
	}
	if err != nil || doc.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Document not found", r))
		return nil, false
	}
	return doc, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
