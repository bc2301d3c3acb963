package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"edulearn-backend/internal/models"
)

// maxListed caps quiz and result listings.
const maxListed = 100

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

// Create stores the quiz with question_count equal to the questions actually held.
func (r *QuizRepo) Create(ctx context.Context, q *models.Quiz) error {
	q.ID = uuid.New()
	q.QuestionCount = len(q.Questions)
	questionsBytes, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}

	query := `INSERT INTO quizzes (id, user_id, document_id, title, difficulty, question_count, questions)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.UserID, q.DocumentID, q.Title, q.Difficulty, q.QuestionCount, questionsBytes,
	).Scan(&q.CreatedAt)
}

func scanQuiz(row pgx.Row) (*models.Quiz, error) {
	q := &models.Quiz{}
	err := row.Scan(&q.ID, &q.UserID, &q.DocumentID, &q.Title, &q.Difficulty, &q.QuestionCount, &q.Questions, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	if q.Questions == nil {
		q.Questions = []models.Question{}
	}
	return q, nil
}

func (r *QuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	query := `SELECT id, user_id, document_id, title, difficulty, question_count, questions, created_at
		FROM quizzes WHERE id = $1`

	q, err := scanQuiz(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// ListByUser returns the user's quizzes newest first, optionally for one document.
func (r *QuizRepo) ListByUser(ctx context.Context, userID uuid.UUID, documentID *uuid.UUID) ([]*models.Quiz, error) {
	query := `SELECT id, user_id, document_id, title, difficulty, question_count, questions, created_at
		FROM quizzes WHERE user_id = $1 AND ($2::uuid IS NULL OR document_id = $2)
		ORDER BY created_at DESC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, userID, documentID, maxListed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := []*models.Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (r *QuizRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM quizzes WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
