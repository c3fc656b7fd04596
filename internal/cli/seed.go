package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"safety-stories-service/internal/config"
	"safety-stories-service/internal/content"
	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/infra/postgres"
	redisstore "safety-stories-service/internal/infra/redis"
)

// NewSeedCmd replaces stored content with a validated YAML document.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import topics, levels, stories and quizzes into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML content document (default: embedded sample)")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	var cat *domain.Catalog
	if file == "" {
		cat = content.Sample()
	} else if cat, err = content.LoadFile(file); err != nil {
		return err
	}

	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}
	db := postgres.OpenBun(cfg.Postgres.URL)
	defer db.Close()
	contentStore := postgres.NewContentStore(db)
	if err := contentStore.ReplaceCatalog(ctx, cat); err != nil {
		return fmt.Errorf("seed content: %w", err)
	}
	// running instances reload on their next cache miss
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := redisstore.NewCatalogRepository(client, contentStore, 0).Invalidate(ctx); err != nil {
			log.Warn("invalidate cached catalog failed", "error", err)
		}
	}
	data := cat.Data()
	log.Info("content seeded",
		"topics", len(data.Topics),
		"levels", len(data.Levels),
		"stories", len(data.Stories),
		"quizzes", len(data.Quizzes),
	)
	return nil
}
