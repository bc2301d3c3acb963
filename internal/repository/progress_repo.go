package repository

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"edulearn-backend/internal/models"
)

const (
	activityRetentionDays = 30
	recentActivityDays    = 7
	dateLayout            = "2006-01-02"
)

// ProgressRepo maintains per-user counters and the daily activity log.
type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

// AddDocument adjusts the user's document counter by delta. Uploads also count
// toward today's activity.
func (r *ProgressRepo) AddDocument(ctx context.Context, userID uuid.UUID, delta int, day time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_stats (user_id, total_documents) VALUES ($1, GREATEST($2, 0))
		ON CONFLICT (user_id) DO UPDATE
		SET total_documents = GREATEST(user_stats.total_documents + $2, 0), updated_at = NOW()`,
		userID, delta,
	)
	if err != nil || delta <= 0 {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO daily_activity (user_id, activity_date, documents_uploaded) VALUES ($1, $2::date, $3)
		ON CONFLICT (user_id, activity_date) DO UPDATE
		SET documents_uploaded = daily_activity.documents_uploaded + $3`,
		userID, day.Format(dateLayout), delta,
	)
	return err
}

// RecordQuizResult adds one graded submission to the counters.
func (r *ProgressRepo) RecordQuizResult(ctx context.Context, userID uuid.UUID, total, correct int, day time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_stats (user_id, total_quizzes_taken, total_questions_answered, total_correct_answers)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			total_quizzes_taken = user_stats.total_quizzes_taken + 1,
			total_questions_answered = user_stats.total_questions_answered + $2,
			total_correct_answers = user_stats.total_correct_answers + $3,
			updated_at = NOW()`,
		userID, total, correct,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO daily_activity (user_id, activity_date, quizzes_taken, questions_answered, correct_answers)
		VALUES ($1, $2::date, 1, $3, $4)
		ON CONFLICT (user_id, activity_date) DO UPDATE SET
			quizzes_taken = daily_activity.quizzes_taken + 1,
			questions_answered = daily_activity.questions_answered + $3,
			correct_answers = daily_activity.correct_answers + $4`,
		userID, day.Format(dateLayout), total, correct,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LogActivity adds study minutes to the given day, prunes old days and advances
// the streak at most once per day. It returns the resulting streak.
func (r *ProgressRepo) LogActivity(ctx context.Context, userID uuid.UUID, studyTime int, day time.Time) (int, error) {
	today := day.Format(dateLayout)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO daily_activity (user_id, activity_date, study_time) VALUES ($1, $2::date, $3)
		ON CONFLICT (user_id, activity_date) DO UPDATE
		SET study_time = daily_activity.study_time + $3`,
		userID, today, studyTime,
	); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM daily_activity WHERE user_id = $1 AND activity_date <= $2::date - $3::int",
		userID, today, activityRetentionDays,
	); err != nil {
		return 0, err
	}

	// A day with activity right before today continues the streak; a gap starts over.
	var streak int
	err = tx.QueryRow(ctx,
		`INSERT INTO user_stats (user_id, study_streak, last_streak_date) VALUES ($1, 1, $2::date)
		ON CONFLICT (user_id) DO UPDATE SET
			study_streak = CASE
				WHEN user_stats.last_streak_date = $2::date THEN user_stats.study_streak
				WHEN user_stats.study_streak = 0
					OR user_stats.last_streak_date = $2::date - 1
					OR EXISTS (SELECT 1 FROM daily_activity d
						WHERE d.user_id = $1 AND d.activity_date = $2::date - 1)
					THEN user_stats.study_streak + 1
				ELSE 1
			END,
			last_streak_date = $2::date,
			updated_at = NOW()
		RETURNING study_streak`,
		userID, today,
	).Scan(&streak)
	if err != nil {
		return 0, err
	}

	return streak, tx.Commit(ctx)
}

// Overview gathers the dashboard numbers. A user without activity gets zeros.
func (r *ProgressRepo) Overview(ctx context.Context, userID uuid.UUID) (*models.ProgressOverview, error) {
	o := &models.ProgressOverview{RecentActivity: []models.DailyStat{}}

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(total_documents), 0), COALESCE(MAX(total_quizzes_taken), 0), COALESCE(MAX(study_streak), 0)
		FROM user_stats WHERE user_id = $1`,
		userID,
	).Scan(&o.TotalDocuments, &o.TotalQuizzesTaken, &o.StudyStreak)
	if err != nil {
		return nil, err
	}

	var avg float64
	if err := r.pool.QueryRow(ctx,
		"SELECT COALESCE(AVG(score_percentage), 0)::float8 FROM exam_results WHERE user_id = $1",
		userID,
	).Scan(&avg); err != nil {
		return nil, err
	}
	o.AverageScore = math.Round(avg*10) / 10

	rows, err := r.pool.Query(ctx,
		`SELECT to_char(activity_date, 'YYYY-MM-DD'), documents_uploaded, quizzes_taken,
			questions_answered, correct_answers, study_time
		FROM (
			SELECT * FROM daily_activity WHERE user_id = $1 ORDER BY activity_date DESC LIMIT $2
		) recent ORDER BY activity_date ASC`,
		userID, recentActivityDays,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s models.DailyStat
		if err := rows.Scan(&s.Date, &s.DocumentsUploaded, &s.QuizzesTaken, &s.QuestionsAnswered, &s.CorrectAnswers, &s.StudyTime); err != nil {
			return nil, err
		}
		o.RecentActivity = append(o.RecentActivity, s)
	}
	return o, rows.Err()
}
