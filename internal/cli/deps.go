package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"safety-stories-service/internal/app"
	"safety-stories-service/internal/config"
	"safety-stories-service/internal/content"
	"safety-stories-service/internal/infra/memory"
	"safety-stories-service/internal/infra/postgres"
	redisstore "safety-stories-service/internal/infra/redis"
	"safety-stories-service/internal/logger"
	transport "safety-stories-service/internal/transport/http"
)

// deps holds the wired services and the connections that back them.
type deps struct {
	services transport.Services
	closers  []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func newLogger(cfg config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// buildDeps connects the configured backends and wires the services.
func buildDeps(ctx context.Context, cfg config.Config, log *logger.Logger) (*deps, error) {
	d := &deps{}
	fail := func(err error) (*deps, error) {
		d.Close()
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = redisClient.Close() })
	}

	var (
		pool *pgxpool.Pool
		db   *bun.DB
	)
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(err)
		}
		d.closers = append(d.closers, pool.Close)
		db = postgres.OpenBun(cfg.Postgres.URL)
		d.closers = append(d.closers, func() { _ = db.Close() })
	}

	var loader memory.CatalogLoader
	switch {
	case db != nil:
		loader = postgres.NewContentStore(db)
	case cfg.Content.SeedPath != "":
		cat, err := content.LoadFile(cfg.Content.SeedPath)
		if err != nil {
			return fail(err)
		}
		loader = content.NewLoader(cat)
	default:
		loader = content.NewLoader(content.Sample())
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = redisstore.NewCatalogRepository(redisClient, loader, contentTTL)
	} else {
		catalog = memory.NewCatalogRepository(loader, contentTTL)
	}

	var users app.UserRepository
	switch cfg.Store.Ledger {
	case "postgres":
		users = postgres.NewUserStore(pool)
	case "redis":
		users = redisstore.NewUserStore(redisClient)
	default:
		users = memory.NewUserStore()
	}

	var (
		entries  app.LeaderboardRepository
		attempts app.QuizProgressRepository
	)
	if pool != nil {
		entries = postgres.NewLeaderboardStore(pool)
		attempts = postgres.NewQuizProgressStore(pool)
	} else {
		entries = memory.NewLeaderboardStore()
		attempts = memory.NewQuizProgressStore()
	}

	opts := app.Options{
		StoreTimeout:    config.TTLDuration(cfg.Store.Timeout, app.DefaultStoreTimeout),
		ConflictRetries: cfg.Store.ConflictRetries,
	}
	leaderboard := app.NewLeaderboardService(entries, users, catalog, app.NewHub(), log,
		config.TTLDuration(cfg.Store.LeaderboardTTL, 5*time.Second), opts)
	quiz := app.NewQuizService(attempts, users, catalog, leaderboard, log, opts)
	d.services = transport.Services{
		// user ids are opaque to the leaderboard and quiz stores, so deletion purges them explicitly
		Progression: app.NewProgressionService(users, catalog, log, opts, leaderboard, quiz),
		Leaderboard: leaderboard,
		Quiz:        quiz,
		Content:     app.NewContentService(catalog, opts),
	}
	log.Info("dependencies ready",
		"ledger", cfg.Store.Ledger,
		"postgres", pool != nil,
		"redis", redisClient != nil,
	)
	return d, nil
}
