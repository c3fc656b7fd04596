package app

import (
	"context"

	"safety-stories-service/internal/domain"
)

// CatalogRepository serves the current authored-content snapshot (from cache/backing store).
type CatalogRepository interface {
	Catalog(ctx context.Context) (*domain.Catalog, error)
}

// UserRepository stores learner profiles and their progression ledgers.
// Implementations must serialize UpdateLedger per user so concurrent
// read-modify-write cycles cannot lose an update.
type UserRepository interface {
	// UpsertUser inserts the user with the initial ledger, or refreshes the
	// profile of an existing user and leaves its ledger untouched.
	UpsertUser(ctx context.Context, user domain.User, initial domain.Ledger) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
	GetLedger(ctx context.Context, userID string) (domain.Ledger, error)
	// UpdateLedger applies mutate to a copy of the ledger and persists it
	// atomically when mutate reports a change. A mutate error aborts with no write.
	UpdateLedger(ctx context.Context, userID string, mutate func(*domain.Ledger) (bool, error)) (domain.Ledger, error)
}

// LeaderboardRepository stores one ranking row per (user, story).
type LeaderboardRepository interface {
	// Upsert finds the row keyed by (entry.UserID, entry.StoryID) and replaces it,
	// or inserts it. The stored row, including its new Seq, is returned.
	Upsert(ctx context.Context, entry domain.LeaderboardEntry) (domain.LeaderboardEntry, error)
	ListByStory(ctx context.Context, storyID string) ([]domain.LeaderboardEntry, error)
	ListAll(ctx context.Context) ([]domain.LeaderboardEntry, error)
	// DeleteByUser removes every row of userID and returns the affected story ids.
	DeleteByUser(ctx context.Context, userID string) ([]string, error)
}

// QuizProgressRepository appends quiz attempts.
type QuizProgressRepository interface {
	Add(ctx context.Context, progress domain.QuizProgress) error
	ListByUser(ctx context.Context, userID string) ([]domain.QuizProgress, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// UserPurger drops data a service keeps about a user once the account is gone.
// User ids are opaque outside the user store, so nothing cascades on its own.
type UserPurger interface {
	PurgeUser(ctx context.Context, userID string) error
}
