package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"safety-stories-service/internal/domain"
)

// QuizProgressStore appends quiz attempts.
type QuizProgressStore struct {
	pool *pgxpool.Pool
}

func NewQuizProgressStore(pool *pgxpool.Pool) *QuizProgressStore {
	return &QuizProgressStore{pool: pool}
}

func (s *QuizProgressStore) Add(ctx context.Context, p domain.QuizProgress) error {
	answers, err := json.Marshal(p.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_progress (id, user_id, story_id, topic_id, level_id, score, total_questions, answers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.StoryID, p.TopicID, p.LevelID, p.Score, p.TotalQuestions, answers, p.CreatedAt,
	)
	return mapErr(err, domain.ErrUserNotFound)
}

// DeleteByUser removes every attempt recorded for userID.
func (s *QuizProgressStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM quiz_progress WHERE user_id = $1`, userID)
	return err
}

func (s *QuizProgressStore) ListByUser(ctx context.Context, userID string) ([]domain.QuizProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id, story_id, topic_id, level_id, score, total_questions, answers, created_at
		FROM quiz_progress WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.QuizProgress{}
	for rows.Next() {
		var (
			p   domain.QuizProgress
			raw []byte
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.StoryID, &p.TopicID, &p.LevelID, &p.Score, &p.TotalQuestions, &raw, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &p.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
