package migrations

import (
	_ "embed"
)

//go:embed 2026101702_create_progress.sql
var createProgressSQL string

func init() {
	Migrations.MustRegister(
		exec(createProgressSQL),
		exec(`DROP TABLE IF EXISTS quiz_progress, leaderboard_entries, ledgers, users`),
	)
}
