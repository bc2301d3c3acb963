package models

import (
	"time"

	"github.com/google/uuid"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// OptionIDs are the only option identifiers a question may carry, in order.
var OptionIDs = []string{"A", "B", "C", "D"}

type QuizOption struct {
	OptionID   string `json:"option_id"`
	OptionText string `json:"option_text"`
}

type Question struct {
	ID            string       `json:"id"`
	QuestionText  string       `json:"question_text"`
	Options       []QuizOption `json:"options"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
}

type Quiz struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	DocumentID    uuid.UUID  `json:"document_id"`
	Title         string     `json:"title"`
	Difficulty    Difficulty `json:"difficulty"`
	QuestionCount int        `json:"question_count"`
	Questions     []Question `json:"questions"`
	CreatedAt     time.Time  `json:"created_at"`
}

// WithoutAnswers returns a copy safe to show before the quiz is taken.
func (q *Quiz) WithoutAnswers() *Quiz {
	out := *q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.CorrectAnswer = ""
		question.Explanation = ""
		out.Questions[i] = question
	}
	return &out
}

type CreateQuizRequest struct {
	DocumentID    uuid.UUID  `json:"document_id"`
	Title         string     `json:"title"`
	Difficulty    Difficulty `json:"difficulty"`
	QuestionCount int        `json:"question_count"`
}

type QuizListResponse struct {
	Quizzes []*Quiz `json:"quizzes"`
	Total   int     `json:"total"`
}

type ExamAnswer struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
}

type ExamSubmission struct {
	Answers   []ExamAnswer `json:"answers"`
	TimeTaken int          `json:"time_taken"`
}
