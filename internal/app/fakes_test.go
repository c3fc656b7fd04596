package app_test

import (
	"context"
	"sync"
	"sync/atomic"

	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/infra/memory"
)

// stallingUserStore never answers ledger updates until the caller gives up.
type stallingUserStore struct {
	*memory.UserStore
}

func (s *stallingUserStore) UpdateLedger(ctx context.Context, _ string, _ func(*domain.Ledger) (bool, error)) (domain.Ledger, error) {
	<-ctx.Done()
	return domain.Ledger{}, ctx.Err()
}

// conflictingUserStore loses the optimistic race a fixed number of times.
type conflictingUserStore struct {
	*memory.UserStore
	failures int64
	calls    atomic.Int64
}

func (s *conflictingUserStore) UpdateLedger(ctx context.Context, userID string, mutate func(*domain.Ledger) (bool, error)) (domain.Ledger, error) {
	if s.calls.Add(1) <= s.failures {
		return domain.Ledger{}, domain.ErrConflict
	}
	return s.UserStore.UpdateLedger(ctx, userID, mutate)
}

// gatedLeaderboardStore reads the first ListAll result, then holds it until
// release is closed, so callers observe a ranking computed before later writes.
type gatedLeaderboardStore struct {
	*memory.LeaderboardStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedLeaderboardStore() *gatedLeaderboardStore {
	return &gatedLeaderboardStore{
		LeaderboardStore: memory.NewLeaderboardStore(),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
}

func (s *gatedLeaderboardStore) ListAll(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := s.LeaderboardStore.ListAll(ctx)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return rows, err
}
