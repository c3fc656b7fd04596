package memory

import (
	"context"
	"sync"

	"safety-stories-service/internal/domain"
)

// QuizProgressStore appends quiz attempts in submission order.
type QuizProgressStore struct {
	mu     sync.RWMutex
	byUser map[string][]domain.QuizProgress
}

func NewQuizProgressStore() *QuizProgressStore {
	return &QuizProgressStore{byUser: make(map[string][]domain.QuizProgress)}
}

func (s *QuizProgressStore) Add(ctx context.Context, progress domain.QuizProgress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	progress.Answers = append([]domain.QuizAnswer{}, progress.Answers...)
	s.mu.Lock()
	s.byUser[progress.UserID] = append(s.byUser[progress.UserID], progress)
	s.mu.Unlock()
	return nil
}

func (s *QuizProgressStore) ListByUser(ctx context.Context, userID string) ([]domain.QuizProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.QuizProgress{}, s.byUser[userID]...), nil
}

func (s *QuizProgressStore) DeleteByUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.byUser, userID)
	s.mu.Unlock()
	return nil
}
