package models

import (
	"time"

	"github.com/google/uuid"
)

type AnswerDetail struct {
	QuestionID     string `json:"question_id"`
	QuestionText   string `json:"question_text"`
	SelectedAnswer string `json:"selected_answer"`
	CorrectAnswer  string `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
	Explanation    string `json:"explanation"`
}

// ExamResult is written once per submission and never updated.
type ExamResult struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	QuizID          uuid.UUID      `json:"quiz_id"`
	DocumentID      uuid.UUID      `json:"document_id"`
	QuizTitle       string         `json:"quiz_title"`
	TotalQuestions  int            `json:"total_questions"`
	CorrectAnswers  int            `json:"correct_answers"`
	WrongAnswers    int            `json:"wrong_answers"`
	ScorePercentage float64        `json:"score_percentage"`
	TimeTaken       int            `json:"time_taken"`
	Difficulty      Difficulty     `json:"difficulty"`
	Answers         []AnswerDetail `json:"answers"`
	WeakTopics      []string       `json:"weak_topics"`
	CompletedAt     time.Time      `json:"completed_at"`
}

// WrongAnswer is the input the weak-topic diagnosis works from.
type WrongAnswer struct {
	QuestionText   string `json:"question_text"`
	SelectedAnswer string `json:"selected_answer"`
	CorrectAnswer  string `json:"correct_answer"`
}

type ExamResultListResponse struct {
	Results []*ExamResult `json:"results"`
	Total   int           `json:"total"`
}
