package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"safety-stories-service/internal/app"
	"safety-stories-service/internal/content"
	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/infra/postgres"
	infraredis "safety-stories-service/internal/infra/redis"
)

const (
	sampleStory = "good-touch-bad-touch"
	sampleTopic = "child-safety"
	sampleLevel = "child-safety-1"
)

type stack struct {
	progression *app.ProgressionService
	leaderboard *app.LeaderboardService
	quiz        *app.QuizService
}

func TestProgressionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	_, err := postgres.Migrate(ctx, db)
	require.NoError(t, err)
	contentStore := postgres.NewContentStore(db)
	require.NoError(t, contentStore.ReplaceCatalog(ctx, content.Sample()))

	pool, err := postgres.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer redisClient.Close()

	catalog := infraredis.NewCatalogRepository(redisClient, contentStore, 5*time.Minute)
	opts := app.Options{StoreTimeout: 5 * time.Second, ConflictRetries: 10}

	for name, users := range map[string]app.UserRepository{
		"postgres": postgres.NewUserStore(pool),
		"redis":    infraredis.NewUserStore(redisClient),
	} {
		t.Run(name, func(t *testing.T) {
			leaderboard := app.NewLeaderboardService(postgres.NewLeaderboardStore(pool), users, catalog, nil, nil, 0, opts)
			quiz := app.NewQuizService(postgres.NewQuizProgressStore(pool), users, catalog, leaderboard, nil, opts)
			s := stack{
				progression: app.NewProgressionService(users, catalog, nil, opts, leaderboard, quiz),
				leaderboard: leaderboard,
				quiz:        quiz,
			}
			runFlow(t, ctx, s, name+"-")
		})
	}

	// leaderboard and quiz rows reference users only by id; the ledger may live elsewhere
	t.Run("opaque user ids", func(t *testing.T) {
		entries := postgres.NewLeaderboardStore(pool)
		attempts := postgres.NewQuizProgressStore(pool)

		stored, err := entries.Upsert(ctx, domain.LeaderboardEntry{
			UserID: "external-only", StoryID: sampleStory, TopicID: sampleTopic, LevelID: sampleLevel,
			Score: 4, Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
		assert.Positive(t, stored.Seq)
		require.NoError(t, attempts.Add(ctx, domain.QuizProgress{
			ID: "7f1c2d1e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", UserID: "external-only", StoryID: sampleStory,
			TopicID: sampleTopic, LevelID: sampleLevel, Score: 1, TotalQuestions: 5, CreatedAt: time.Now().UTC(),
		}))

		stories, err := entries.DeleteByUser(ctx, "external-only")
		require.NoError(t, err)
		assert.Equal(t, []string{sampleStory}, stories)
		require.NoError(t, attempts.DeleteByUser(ctx, "external-only"))
		rows, err := attempts.ListByUser(ctx, "external-only")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func runFlow(t *testing.T, ctx context.Context, s stack, prefix string) {
	alice, bob := prefix+"alice", prefix+"bob"
	for _, id := range []string{alice, bob} {
		_, err := s.progression.RegisterUser(ctx, domain.User{ID: id, Username: id})
		require.NoError(t, err)
	}

	progress, err := s.progression.Progress(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{sampleLevel}, progress.UnlockedLevels)

	// concurrent duplicates must credit the story once
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.progression.CompleteStory(ctx, alice, sampleStory, 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	progress, err = s.progression.Progress(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, progress.CurrentStars)
	assert.Equal(t, []string{sampleStory}, progress.CompletedStories)
	assert.Equal(t, []string{sampleLevel}, progress.CompletedLevels)

	submitted, err := s.quiz.SubmitQuiz(ctx, bob, sampleStory, []domain.QuizAnswer{
		{QuizID: "gtbt-1", SelectedAnswer: "Some body parts are private"},
		{QuizID: "gtbt-4", SelectedAnswer: "Say no and tell a trusted adult"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, submitted.Score)
	assert.Equal(t, 5, submitted.TotalQuestions)

	_, err = s.leaderboard.Submit(ctx, app.ScoreSubmission{UserID: alice, StoryID: sampleStory, TopicID: sampleTopic, LevelID: sampleLevel, Score: 1})
	require.NoError(t, err)

	lb, err := s.leaderboard.ByStory(ctx, sampleStory)
	require.NoError(t, err)
	var ours []domain.LeaderboardEntry
	for _, e := range lb.Entries {
		if strings.HasPrefix(e.UserID, prefix) {
			ours = append(ours, e)
		}
	}
	require.Len(t, ours, 2)
	assert.Equal(t, bob, ours[0].UserID)

	summary, err := s.quiz.Summary(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CurrentStars)
	assert.Equal(t, []string{sampleStory}, summary.CompletedStories)

	// quiz scoring never moves ledger stars
	progress, err = s.progression.Progress(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, progress.CurrentStars)

	require.NoError(t, s.progression.DeleteUser(ctx, bob))
	lb, err = s.leaderboard.ByStory(ctx, sampleStory)
	require.NoError(t, err)
	for _, e := range lb.Entries {
		assert.NotEqual(t, bob, e.UserID)
	}
	summary, err = s.quiz.Summary(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, summary.CurrentStars)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "stories", "POSTGRES_PASSWORD": "storiespass", "POSTGRES_DB": "storiesdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://stories:storiespass@%s:%s/storiesdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
