package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"edulearn-backend/internal/models"
)

// ResultRepo persists exam results. Results are never updated after insert.
type ResultRepo struct {
	pool *pgxpool.Pool
}

func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

func (r *ResultRepo) Create(ctx context.Context, res *models.ExamResult) error {
	res.ID = uuid.New()
	answersBytes, err := json.Marshal(res.Answers)
	if err != nil {
		return err
	}
	if res.WeakTopics == nil {
		res.WeakTopics = []string{}
	}
	topicsBytes, err := json.Marshal(res.WeakTopics)
	if err != nil {
		return err
	}

	query := `INSERT INTO exam_results (id, user_id, quiz_id, document_id, quiz_title, total_questions,
		correct_answers, wrong_answers, score_percentage, time_taken, difficulty, answers, weak_topics, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.pool.Exec(ctx, query,
		res.ID, res.UserID, res.QuizID, res.DocumentID, res.QuizTitle, res.TotalQuestions,
		res.CorrectAnswers, res.WrongAnswers, res.ScorePercentage, res.TimeTaken, res.Difficulty,
		answersBytes, topicsBytes, res.CompletedAt,
	)
	return err
}

const resultColumns = `id, user_id, quiz_id, document_id, quiz_title, total_questions, correct_answers,
	wrong_answers, score_percentage, time_taken, difficulty, answers, weak_topics, completed_at`

func scanResult(row pgx.Row) (*models.ExamResult, error) {
	res := &models.ExamResult{}
	err := row.Scan(
		&res.ID, &res.UserID, &res.QuizID, &res.DocumentID, &res.QuizTitle, &res.TotalQuestions, &res.CorrectAnswers,
		&res.WrongAnswers, &res.ScorePercentage, &res.TimeTaken, &res.Difficulty, &res.Answers, &res.WeakTopics, &res.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if res.WeakTopics == nil {
		res.WeakTopics = []string{}
	}
	return res, nil
}

func (r *ResultRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ExamResult, error) {
	res, err := scanResult(r.pool.QueryRow(ctx, "SELECT "+resultColumns+" FROM exam_results WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

func (r *ResultRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ExamResult, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+resultColumns+" FROM exam_results WHERE user_id = $1 ORDER BY completed_at DESC LIMIT $2",
		userID, maxListed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*models.ExamResult{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
