package memory

import (
	"context"
	"sync"

	"safety-stories-service/internal/domain"
)

type entryKey struct {
	userID  string
	storyID string
}

// LeaderboardStore keeps one row per (user, story).
type LeaderboardStore struct {
	mu      sync.RWMutex
	seq     int64
	entries map[entryKey]domain.LeaderboardEntry
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{entries: make(map[entryKey]domain.LeaderboardEntry)}
}

func (s *LeaderboardStore) Upsert(ctx context.Context, entry domain.LeaderboardEntry) (domain.LeaderboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.LeaderboardEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	entry.Seq = s.seq
	s.entries[entryKey{userID: entry.UserID, storyID: entry.StoryID}] = entry
	return entry, nil
}

func (s *LeaderboardStore) ListByStory(ctx context.Context, storyID string) ([]domain.LeaderboardEntry, error) {
	return s.list(ctx, func(e domain.LeaderboardEntry) bool { return e.StoryID == storyID })
}

func (s *LeaderboardStore) ListAll(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return s.list(ctx, func(domain.LeaderboardEntry) bool { return true })
}

// DeleteByUser removes the user's rows and reports the stories they ranked on.
func (s *LeaderboardStore) DeleteByUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stories := []string{}
	for key := range s.entries {
		if key.userID == userID {
			stories = append(stories, key.storyID)
			delete(s.entries, key)
		}
	}
	return stories, nil
}

func (s *LeaderboardStore) list(ctx context.Context, keep func(domain.LeaderboardEntry) bool) ([]domain.LeaderboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LeaderboardEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
