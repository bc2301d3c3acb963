package models

import "github.com/google/uuid"

// WebSocket message types
const (
	EventStatusUpdate = "status_update"
	EventCompleted    = "completed"
	EventError        = "error"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	DocumentID uuid.UUID `json:"document_id"`
	Step       int       `json:"step"`
	TotalSteps int       `json:"total_steps"`
	StepName   string    `json:"step_name"`
}

type CompletedEvent struct {
	DocumentID uuid.UUID        `json:"document_id"`
	Status     ProcessingStatus `json:"status"`
}

type ErrorEvent struct {
	DocumentID   uuid.UUID `json:"document_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
