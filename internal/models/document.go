package models

import (
	"time"

	"github.com/google/uuid"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

const (
	FileTypePDF   = "pdf"
	FileTypeImage = "image"
	FileTypeDOCX  = "docx"
	FileTypeText  = "txt"
)

type Document struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Title            string           `json:"title"`
	FileType         string           `json:"file_type"`
	FileSize         int64            `json:"file_size"`
	FilePath         string           `json:"-"`
	ExtractedText    *string          `json:"extracted_text"`
	Summary          *string          `json:"summary"`
	PageSummaries    []PageSummary    `json:"page_summaries"`
	EasyExplanation  *string          `json:"easy_explanation"`
	KeyConcepts      []string         `json:"key_concepts"`
	WikiContext      []WikiEntry      `json:"wiki_context"`
	PageCount        int              `json:"page_count"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// PageSummary is the insight generated for one non-blank source page.
type PageSummary struct {
	PageNumber int      `json:"page_number"`
	Content    string   `json:"content"`
	KeyPoints  []string `json:"key_points"`
	FocusTopic *string  `json:"focus_topic,omitempty"`
}

type WikiEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	URL        string `json:"url"`
}

type DocumentListResponse struct {
	Documents []*Document `json:"documents"`
	Total     int         `json:"total"`
	Page      int         `json:"page"`
	Limit     int         `json:"limit"`
}
