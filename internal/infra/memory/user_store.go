package memory

import (
	"context"
	"sync"

	"safety-stories-service/internal/domain"
)

type userRecord struct {
	mu     sync.Mutex
	user   domain.User
	ledger domain.Ledger
}

// UserStore is an in-memory implementation of app.UserRepository. Ledger
// updates hold a per-user lock so different users never contend.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*userRecord
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*userRecord)}
}

func (s *UserStore) UpsertUser(ctx context.Context, user domain.User, initial domain.Ledger) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.users[user.ID]; ok {
		rec.mu.Lock()
		user.CreatedAt = rec.user.CreatedAt
		rec.user = user
		rec.mu.Unlock()
		return user, nil
	}
	s.users[user.ID] = &userRecord{user: user, ledger: initial.Clone()}
	return user, nil
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	rec, err := s.record(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.user, nil
}

func (s *UserStore) DeleteUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, userID)
	return nil
}

func (s *UserStore) GetLedger(ctx context.Context, userID string) (domain.Ledger, error) {
	rec, err := s.record(ctx, userID)
	if err != nil {
		return domain.Ledger{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.ledger.Clone(), nil
}

func (s *UserStore) UpdateLedger(ctx context.Context, userID string, mutate func(*domain.Ledger) (bool, error)) (domain.Ledger, error) {
	rec, err := s.record(ctx, userID)
	if err != nil {
		return domain.Ledger{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.Ledger{}, err
	}
	if !s.live(userID, rec) {
		return domain.Ledger{}, domain.ErrUserNotFound
	}

	next := rec.ledger.Clone()
	changed, err := mutate(&next)
	if err != nil {
		return domain.Ledger{}, err
	}
	// the account may have been deleted while mutate ran
	if !s.live(userID, rec) {
		return domain.Ledger{}, domain.ErrUserNotFound
	}
	if changed {
		rec.ledger = next
	}
	return rec.ledger.Clone(), nil
}

// live reports whether rec is still the stored record for userID.
func (s *UserStore) live(userID string, rec *userRecord) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID] == rec
}

func (s *UserStore) record(ctx context.Context, userID string) (*userRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return rec, nil
}
