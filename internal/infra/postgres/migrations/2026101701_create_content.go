package migrations

import (
	_ "embed"
)

//go:embed 2026101701_create_content.sql
var createContentSQL string

func init() {
	Migrations.MustRegister(
		exec(createContentSQL),
		exec(`DROP TABLE IF EXISTS quiz_questions, stories, levels, topics`),
	)
}
