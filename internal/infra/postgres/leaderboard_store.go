package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"safety-stories-service/internal/domain"
)

// LeaderboardStore keeps one row per (user_id, story_id). Every write draws a
// fresh seq, so the most recent submission is always identifiable.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

// Upsert finds the row by key and updates it, or inserts it. Two first
// submissions racing on the same key surface as domain.ErrConflict.
func (s *LeaderboardStore) Upsert(ctx context.Context, entry domain.LeaderboardEntry) (domain.LeaderboardEntry, error) {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var seq int64
		err := tx.QueryRow(ctx, `
			SELECT seq FROM leaderboard_entries
			WHERE user_id = $1 AND story_id = $2
			FOR UPDATE`, entry.UserID, entry.StoryID,
		).Scan(&seq)
		switch {
		case err == nil:
			return tx.QueryRow(ctx, `
				UPDATE leaderboard_entries SET
					topic_id = $3,
					level_id = $4,
					score = $5,
					submitted_at = $6,
					seq = nextval(pg_get_serial_sequence('leaderboard_entries', 'seq'))
				WHERE user_id = $1 AND story_id = $2
				RETURNING seq`,
				entry.UserID, entry.StoryID, entry.TopicID, entry.LevelID, entry.Score, entry.Timestamp,
			).Scan(&entry.Seq)
		case errors.Is(err, pgx.ErrNoRows):
			return tx.QueryRow(ctx, `
				INSERT INTO leaderboard_entries (user_id, story_id, topic_id, level_id, score, submitted_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING seq`,
				entry.UserID, entry.StoryID, entry.TopicID, entry.LevelID, entry.Score, entry.Timestamp,
			).Scan(&entry.Seq)
		default:
			return err
		}
	})
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("upsert leaderboard entry: %w", mapErr(err, domain.ErrUserNotFound))
	}
	return entry, nil
}

func (s *LeaderboardStore) ListByStory(ctx context.Context, storyID string) ([]domain.LeaderboardEntry, error) {
	return s.query(ctx, selectEntriesSQL+` WHERE story_id = $1 ORDER BY score DESC, submitted_at`, storyID)
}

func (s *LeaderboardStore) ListAll(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return s.query(ctx, selectEntriesSQL+` ORDER BY seq`)
}

// DeleteByUser removes the user's rows and reports the stories they ranked on.
func (s *LeaderboardStore) DeleteByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `DELETE FROM leaderboard_entries WHERE user_id = $1 RETURNING story_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stories := []string{}
	for rows.Next() {
		var storyID string
		if err := rows.Scan(&storyID); err != nil {
			return nil, err
		}
		stories = append(stories, storyID)
	}
	return stories, rows.Err()
}

const selectEntriesSQL = `SELECT user_id, story_id, topic_id, level_id, score, submitted_at, seq FROM leaderboard_entries`

func (s *LeaderboardStore) query(ctx context.Context, sql string, args ...interface{}) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.LeaderboardEntry{}
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.StoryID, &e.TopicID, &e.LevelID, &e.Score, &e.Timestamp, &e.Seq); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
