package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"safety-stories-service/internal/app"
	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/infra/memory"
)

type harness struct {
	users       *memory.UserStore
	entries     *memory.LeaderboardStore
	quizzes     *memory.QuizProgressStore
	catalog     *memory.CatalogRepository
	hub         *app.Hub
	progression *app.ProgressionService
	leaderboard *app.LeaderboardService
	quiz        *app.QuizService
	content     *app.ContentService
	clock       *fakeClock
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithUsers(t, nil)
}

func newHarnessWithUsers(t *testing.T, users app.UserRepository) *harness {
	t.Helper()
	return newHarnessWithStores(t, users, nil)
}

// newHarnessWithStores wires the services over memory stores; users and
// entries override the user and leaderboard repositories when non-nil.
func newHarnessWithStores(t *testing.T, users app.UserRepository, entries app.LeaderboardRepository) *harness {
	t.Helper()
	h := &harness{
		users:   memory.NewUserStore(),
		entries: memory.NewLeaderboardStore(),
		quizzes: memory.NewQuizProgressStore(),
		catalog: memory.NewCatalogRepository(memory.NewStaticCatalogLoader(safetyCatalog()), time.Minute),
		hub:     app.NewHub(),
		clock:   &fakeClock{now: time.Unix(1_700_000_000, 0)},
	}
	if users == nil {
		users = h.users
	}
	if entries == nil {
		entries = h.entries
	}
	opts := app.Options{StoreTimeout: 200 * time.Millisecond, ConflictRetries: 3, Now: h.clock.Now}
	h.leaderboard = app.NewLeaderboardService(entries, users, h.catalog, h.hub, nil, time.Minute, opts)
	h.quiz = app.NewQuizService(h.quizzes, users, h.catalog, h.leaderboard, nil, opts)
	h.progression = app.NewProgressionService(users, h.catalog, nil, opts, h.leaderboard, h.quiz)
	h.content = app.NewContentService(h.catalog, opts)
	return h
}

func (h *harness) register(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := h.progression.RegisterUser(context.Background(), domain.User{ID: id, Username: "user-" + id})
		require.NoError(t, err)
	}
}

func story(id, levelID, title string) domain.Story {
	return domain.Story{
		ID:      id,
		LevelID: levelID,
		Title:   title,
		Scenes: []domain.Scene{
			{Title: "start", Options: []domain.Option{{Text: "Next", To: 1}}},
			{Title: "choice", Options: []domain.Option{{Text: "Unsafe", To: 2}, {Text: "Safe", To: 3}}},
			{Title: "unsafe", Options: []domain.Option{{Text: "Try again", To: 1}}},
			{Title: "safe", Options: []domain.Option{{Text: "End Story", To: 0}}},
		},
	}
}

// safetyCatalog: "Safety" has level-1 (stories a, b) and level-2 (threshold 2,
// story c); "Home" has one level with story h and a level gated at 3 stars.
func safetyCatalog() domain.CatalogData {
	return domain.CatalogData{
		Topics: []domain.Topic{
			{ID: "safety", Name: "Safety"},
			{ID: "home", Name: "Home"},
		},
		Levels: []domain.Level{
			{ID: "level-1", TopicID: "safety", LevelNumber: 1},
			{ID: "level-2", TopicID: "safety", LevelNumber: 2, StarsRequiredToUnlock: 2},
			{ID: "home-1", TopicID: "home", LevelNumber: 1},
			{ID: "home-2", TopicID: "home", LevelNumber: 2, StarsRequiredToUnlock: 4},
		},
		Stories: []domain.Story{
			story("story-a", "level-1", "Stranger Danger"),
			story("story-b", "level-1", "Safe Secrets"),
			story("story-c", "level-2", "Road Safety"),
			story("story-h", "home-1", "Hot Stove"),
		},
		Quizzes: []domain.QuizQuestion{
			{ID: "q1", StoryID: "story-a", Question: "A stranger offers candy. What do you do?", Options: []string{"Take it", "Say no and tell a parent"}, CorrectAnswer: "Say no and tell a parent"},
			{ID: "q2", StoryID: "story-a", Question: "Who can you trust?", Options: []string{"Anyone", "Your parents"}, CorrectAnswer: "Your parents"},
		},
	}
}
