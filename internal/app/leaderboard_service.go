package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/logger"
)

const (
	// OverallLimit is the size of the aggregate ranking.
	OverallLimit = 50
	// FilteredLimit caps filtered leaderboard queries.
	FilteredLimit = 50
)

// ScoreSubmission is a validated request to record a (user, story) score.
type ScoreSubmission struct {
	UserID  string
	StoryID string
	TopicID string
	LevelID string
	Score   int
}

// LeaderboardService maintains the leaderboard projection.
type LeaderboardService struct {
	entries LeaderboardRepository
	users   UserRepository
	catalog CatalogRepository
	hub     *Hub
	log     *logger.Logger
	opts    Options

	// overall rankings may be served stale for up to cacheTTL.
	cacheTTL time.Duration
	sf       singleflight.Group
	mu       sync.RWMutex
	overall  []domain.OverallEntry
	expires  time.Time
	// gen counts writes; a ranking computed under an older gen is never cached.
	gen uint64
}

func NewLeaderboardService(entries LeaderboardRepository, users UserRepository, catalog CatalogRepository, hub *Hub, log *logger.Logger, cacheTTL time.Duration, opts Options) *LeaderboardService {
	if log == nil {
		log = logger.Nop()
	}
	if hub == nil {
		hub = NewHub()
	}
	return &LeaderboardService{
		entries:  entries,
		users:    users,
		catalog:  catalog,
		hub:      hub,
		log:      log,
		opts:     opts.withDefaults(),
		cacheTTL: cacheTTL,
	}
}

// Submit upserts the (user, story) row; a later submission replaces an earlier
// one regardless of score.
func (s *LeaderboardService) Submit(ctx context.Context, in ScoreSubmission) (domain.LeaderboardEntry, error) {
	switch {
	case in.UserID == "" || in.StoryID == "" || in.TopicID == "" || in.LevelID == "":
		return domain.LeaderboardEntry{}, domain.Validationf("userId, story, topic and level are required")
	case in.Score < 0:
		return domain.LeaderboardEntry{}, domain.Validationf("score must not be negative")
	}

	if _, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.users.GetUser(ctx, in.UserID)
	}); err != nil {
		return domain.LeaderboardEntry{}, err
	}
	cat, err := storeCall(ctx, s.opts.StoreTimeout, s.catalog.Catalog)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	story, err := cat.Story(in.StoryID)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	if story.TopicID != in.TopicID || story.LevelID != in.LevelID {
		return domain.LeaderboardEntry{}, domain.Validationf("topic and level must match story %q", in.StoryID)
	}

	entry := domain.LeaderboardEntry{
		UserID:    in.UserID,
		StoryID:   in.StoryID,
		TopicID:   in.TopicID,
		LevelID:   in.LevelID,
		Score:     in.Score,
		Timestamp: s.opts.Now(),
	}
	stored, err := retryConflicts(s.opts.ConflictRetries, func() (domain.LeaderboardEntry, error) {
		return storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (domain.LeaderboardEntry, error) {
			return s.entries.Upsert(ctx, entry)
		})
	})
	if err != nil {
		s.log.Error("submit score failed", "user_id", in.UserID, "story_id", in.StoryID, "error", err)
		return domain.LeaderboardEntry{}, err
	}
	s.invalidateOverall()
	s.publish(ctx, in.StoryID, false)
	return stored, nil
}

// PurgeUser removes every leaderboard row of userID and republishes the
// rankings it appeared in.
func (s *LeaderboardService) PurgeUser(ctx context.Context, userID string) error {
	stories, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) ([]string, error) {
		return s.entries.DeleteByUser(ctx, userID)
	})
	if err != nil {
		return err
	}
	s.invalidateOverall()
	for _, storyID := range stories {
		s.publish(ctx, storyID, true)
	}
	return nil
}

// Watchers reports how many live streams follow storyID.
func (s *LeaderboardService) Watchers(storyID string) int {
	return s.hub.Subscribers(storyID)
}

// publish pushes the story's current ranking to live subscribers. Removals
// shrink the ranking, so they bypass the hub's newest-write ordering.
func (s *LeaderboardService) publish(ctx context.Context, storyID string, removal bool) {
	lb, err := s.ByStory(ctx, storyID)
	if err != nil {
		s.log.Warn("publish leaderboard failed", "story_id", storyID, "error", err)
		return
	}
	if removal {
		s.hub.Reset(lb)
		return
	}
	s.hub.Publish(lb)
}

// ByStory returns the story's ranking: score desc, earliest timestamp first on ties.
func (s *LeaderboardService) ByStory(ctx context.Context, storyID string) (domain.StoryLeaderboard, error) {
	cat, err := storeCall(ctx, s.opts.StoreTimeout, s.catalog.Catalog)
	if err != nil {
		return domain.StoryLeaderboard{}, err
	}
	if _, err := cat.Story(storyID); err != nil {
		return domain.StoryLeaderboard{}, err
	}
	entries, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) ([]domain.LeaderboardEntry, error) {
		return s.entries.ListByStory(ctx, storyID)
	})
	if err != nil {
		return domain.StoryLeaderboard{}, err
	}
	rankEntries(entries)
	return domain.StoryLeaderboard{StoryID: storyID, Entries: entries, UpdatedAt: s.opts.Now()}, nil
}

// Filtered returns entries matching filter, best first, capped at FilteredLimit.
func (s *LeaderboardService) Filtered(ctx context.Context, filter domain.LeaderboardFilter) ([]domain.LeaderboardEntry, error) {
	all, err := storeCall(ctx, s.opts.StoreTimeout, s.entries.ListAll)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LeaderboardEntry, 0, len(all))
	for _, e := range all {
		if filter.TopicID != "" && e.TopicID != filter.TopicID {
			continue
		}
		if filter.LevelID != "" && e.LevelID != filter.LevelID {
			continue
		}
		if filter.StoryID != "" && e.StoryID != filter.StoryID {
			continue
		}
		out = append(out, e)
	}
	rankEntries(out)
	if len(out) > FilteredLimit {
		out = out[:FilteredLimit]
	}
	return out, nil
}

// Overall returns the top OverallLimit users by total score.
func (s *LeaderboardService) Overall(ctx context.Context) ([]domain.OverallEntry, error) {
	now := s.opts.Now()
	s.mu.RLock()
	if s.overall != nil && s.expires.After(now) {
		cached := s.overall
		s.mu.RUnlock()
		return cached, nil
	}
	gen := s.gen
	s.mu.RUnlock()

	// keyed by generation so callers arriving after a write never join a stale flight
	result, err, _ := s.sf.Do(fmt.Sprintf("overall-%d", gen), func() (interface{}, error) {
		all, err := storeCall(ctx, s.opts.StoreTimeout, s.entries.ListAll)
		if err != nil {
			return nil, err
		}
		ranked := rankOverall(all, OverallLimit)
		for i := range ranked {
			user, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (domain.User, error) {
				return s.users.GetUser(ctx, ranked[i].UserID)
			})
			switch {
			case err == nil:
				ranked[i].Username = user.Username
			case errors.Is(err, domain.ErrNotFound):
			default:
				return nil, err
			}
		}

		s.mu.Lock()
		if s.gen == gen {
			s.overall = ranked
			s.expires = now.Add(s.cacheTTL)
		}
		s.mu.Unlock()
		return ranked, nil
	})
	if err != nil {
		s.log.Error("overall leaderboard failed", "error", err)
		return nil, err
	}
	return result.([]domain.OverallEntry), nil
}

// Subscribe streams the story's leaderboard, starting with the current snapshot.
func (s *LeaderboardService) Subscribe(ctx context.Context, storyID string) (<-chan domain.StoryLeaderboard, func(), error) {
	initial, err := s.ByStory(ctx, storyID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(storyID, initial)
	return ch, cancel, nil
}

func (s *LeaderboardService) invalidateOverall() {
	s.mu.Lock()
	s.overall = nil
	s.gen++
	s.mu.Unlock()
}

// rankEntries sorts by score desc, then earliest timestamp, then user id.
func rankEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// rankOverall totals each user's scores. Topic and level come from the user's
// most recently written entry and are display-only.
func rankOverall(entries []domain.LeaderboardEntry, limit int) []domain.OverallEntry {
	type agg struct {
		total  int
		latest domain.LeaderboardEntry
	}
	byUser := make(map[string]*agg)
	for _, e := range entries {
		a, ok := byUser[e.UserID]
		if !ok {
			byUser[e.UserID] = &agg{total: e.Score, latest: e}
			continue
		}
		a.total += e.Score
		if e.Seq > a.latest.Seq {
			a.latest = e
		}
	}

	out := make([]domain.OverallEntry, 0, len(byUser))
	for userID, a := range byUser {
		out = append(out, domain.OverallEntry{
			UserID:     userID,
			TotalScore: a.total,
			TopicID:    a.latest.TopicID,
			LevelID:    a.latest.LevelID,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
