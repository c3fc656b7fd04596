package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"safety-stories-service/internal/config"
	"safety-stories-service/internal/export"
)

// NewLeaderboardCmd groups leaderboard maintenance commands.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Leaderboard tools",
	}
	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the overall leaderboard to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), *configPath, out)
		},
	}
	exportCmd.Flags().StringVar(&out, "out", "leaderboard.xlsx", "output .xlsx path")
	cmd.AddCommand(exportCmd)
	return cmd
}

func runExport(ctx context.Context, configPath, out string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	rows, err := d.services.Leaderboard.Overall(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := export.WriteOverall(f, rows, time.Now()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("leaderboard exported", "path", out, "rows", len(rows))
	return nil
}
