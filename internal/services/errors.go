package services

import "errors"

// Custom errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// UpstreamError reports that a required generation result could not be produced.
type UpstreamError struct{ Message string }

func (e *UpstreamError) Error() string { return e.Message }

// ErrNoQuestions is returned when the model produced no usable quiz questions.
var ErrNoQuestions = errors.New("no quiz questions could be generated")
