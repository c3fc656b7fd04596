package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"safety-stories-service/internal/domain"
)

// UserStore persists profiles and ledgers. Ledger updates run in a transaction
// holding the ledger row lock, so writers for one user queue up while writers
// for different users proceed in parallel.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) UpsertUser(ctx context.Context, user domain.User, initial domain.Ledger) (domain.User, error) {
	var stored domain.User
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (id, username, email, first_name, last_name, image_url, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				username = EXCLUDED.username,
				email = EXCLUDED.email,
				first_name = EXCLUDED.first_name,
				last_name = EXCLUDED.last_name,
				image_url = EXCLUDED.image_url
			RETURNING id, username, email, first_name, last_name, image_url, created_at`,
			user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.ImageURL, user.CreatedAt,
		).Scan(&stored.ID, &stored.Username, &stored.Email, &stored.FirstName, &stored.LastName, &stored.ImageURL, &stored.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO ledgers (user_id, current_stars, completed_stories, completed_levels, unlocked_levels, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id) DO NOTHING`,
			user.ID, initial.CurrentStars, nonNil(initial.CompletedStories), nonNil(initial.CompletedLevels),
			nonNil(initial.UnlockedLevels), initial.Version, initial.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.User{}, mapErr(err, domain.ErrUserNotFound)
	}
	return stored, nil
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, first_name, last_name, image_url, created_at
		FROM users WHERE id = $1`, userID,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.ImageURL, &u.CreatedAt)
	if err != nil {
		return domain.User{}, mapErr(err, domain.ErrUserNotFound)
	}
	return u, nil
}

// DeleteUser removes the user and, by cascade, its ledger.
func (s *UserStore) DeleteUser(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) GetLedger(ctx context.Context, userID string) (domain.Ledger, error) {
	return scanLedger(s.pool.QueryRow(ctx, selectLedgerSQL, userID))
}

func (s *UserStore) UpdateLedger(ctx context.Context, userID string, mutate func(*domain.Ledger) (bool, error)) (domain.Ledger, error) {
	var result domain.Ledger
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		current, err := scanLedger(tx.QueryRow(ctx, selectLedgerSQL+` FOR UPDATE`, userID))
		if err != nil {
			return err
		}
		next := current.Clone()
		changed, err := mutate(&next)
		if err != nil {
			return err
		}
		if !changed {
			result = current
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE ledgers SET
				current_stars = $2,
				completed_stories = $3,
				completed_levels = $4,
				unlocked_levels = $5,
				version = $6,
				updated_at = $7
			WHERE user_id = $1`,
			userID, next.CurrentStars, nonNil(next.CompletedStories), nonNil(next.CompletedLevels),
			nonNil(next.UnlockedLevels), next.Version, next.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("write ledger: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return domain.Ledger{}, err
	}
	return result, nil
}

const selectLedgerSQL = `
	SELECT user_id, current_stars, completed_stories, completed_levels, unlocked_levels, version, updated_at
	FROM ledgers WHERE user_id = $1`

func scanLedger(row pgx.Row) (domain.Ledger, error) {
	var l domain.Ledger
	err := row.Scan(&l.UserID, &l.CurrentStars, &l.CompletedStories, &l.CompletedLevels, &l.UnlockedLevels, &l.Version, &l.UpdatedAt)
	if err != nil {
		return domain.Ledger{}, mapErr(err, domain.ErrUserNotFound)
	}
	l.CompletedStories = nonNil(l.CompletedStories)
	l.CompletedLevels = nonNil(l.CompletedLevels)
	l.UnlockedLevels = nonNil(l.UnlockedLevels)
	return l, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
