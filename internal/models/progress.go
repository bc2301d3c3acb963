package models

import (
	"time"

	"github.com/google/uuid"
)

type UserStats struct {
	UserID                 uuid.UUID `json:"user_id"`
	TotalDocuments         int       `json:"total_documents"`
	TotalQuizzesTaken      int       `json:"total_quizzes_taken"`
	TotalCorrectAnswers    int       `json:"total_correct_answers"`
	TotalQuestionsAnswered int       `json:"total_questions_answered"`
	StudyStreak            int       `json:"study_streak"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type DailyStat struct {
	Date              string `json:"date"`
	DocumentsUploaded int    `json:"documents_uploaded"`
	QuizzesTaken      int    `json:"quizzes_taken"`
	QuestionsAnswered int    `json:"questions_answered"`
	CorrectAnswers    int    `json:"correct_answers"`
	StudyTime         int    `json:"study_time"`
}

type ProgressOverview struct {
	TotalDocuments    int         `json:"total_documents"`
	TotalQuizzesTaken int         `json:"total_quizzes_taken"`
	AverageScore      float64     `json:"average_score"`
	StudyStreak       int         `json:"study_streak"`
	RecentActivity    []DailyStat `json:"recent_activity"`
}

type LogActivityRequest struct {
	StudyTime int `json:"study_time"`
}
