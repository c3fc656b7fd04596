package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/logger"
)

const (
	// DefaultStarsEarned is credited when a completion does not say otherwise.
	DefaultStarsEarned = 1
	// MaxStarsEarned caps a single completion.
	MaxStarsEarned = 100
)

// Options tune store access shared by the services.
type Options struct {
	StoreTimeout    time.Duration
	ConflictRetries int
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.ConflictRetries < 0 {
		o.ConflictRetries = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ProgressionService owns user registration and the progression ledger.
type ProgressionService struct {
	users   UserRepository
	catalog CatalogRepository
	log     *logger.Logger
	opts    Options
	purgers []UserPurger
}

// NewProgressionService wires the ledger owner. purgers run after an account is
// deleted, in order.
func NewProgressionService(users UserRepository, catalog CatalogRepository, log *logger.Logger, opts Options, purgers ...UserPurger) *ProgressionService {
	if log == nil {
		log = logger.Nop()
	}
	return &ProgressionService{users: users, catalog: catalog, log: log, opts: opts.withDefaults(), purgers: purgers}
}

// RegisterUser creates the user and its ledger, or refreshes the profile of a
// known user without touching progression.
func (s *ProgressionService) RegisterUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		return domain.User{}, domain.Validationf("user id is required")
	}
	cat, err := s.loadCatalog(ctx)
	if err != nil {
		return domain.User{}, err
	}
	now := s.opts.Now()
	user.CreatedAt = now
	initial := domain.NewLedger(user.ID, now)
	initial.UnlockedLevels = cat.FirstLevels()

	stored, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.users.UpsertUser(ctx, user, initial)
	})
	if err != nil {
		s.log.Error("register user failed", "user_id", user.ID, "error", err)
		return domain.User{}, err
	}
	return stored, nil
}

func (s *ProgressionService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.users.GetUser(ctx, userID)
	})
}

// DeleteUser removes the account and its ledger, then the user's leaderboard
// rows and quiz attempts through the registered purgers.
func (s *ProgressionService) DeleteUser(ctx context.Context, userID string) error {
	_, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.users.DeleteUser(ctx, userID)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error("delete user failed", "user_id", userID, "error", err)
		}
		return err
	}
	for _, p := range s.purgers {
		if err := p.PurgeUser(ctx, userID); err != nil {
			s.log.Error("purge user data failed", "user_id", userID, "error", err)
			return fmt.Errorf("purge user %s: %w", userID, err)
		}
	}
	s.log.Info("user deleted", "user_id", userID)
	return nil
}

// CompleteStory applies the story-completion transition for userID. Repeating
// a completion returns the ledger unchanged.
func (s *ProgressionService) CompleteStory(ctx context.Context, userID, storyID string, starsEarned int) (domain.Ledger, error) {
	switch {
	case userID == "":
		return domain.Ledger{}, domain.Validationf("user id is required")
	case storyID == "":
		return domain.Ledger{}, domain.Validationf("storyId is required")
	case starsEarned < 0 || starsEarned > MaxStarsEarned:
		return domain.Ledger{}, domain.Validationf("starsEarned must be between 0 and %d", MaxStarsEarned)
	}

	cat, err := s.loadCatalog(ctx)
	if err != nil {
		return domain.Ledger{}, err
	}
	story, err := cat.Story(storyID)
	if err != nil {
		s.log.Warn("complete story rejected", "user_id", userID, "story_id", storyID, "error", err)
		return domain.Ledger{}, err
	}

	var applied bool
	ledger, err := retryConflicts(s.opts.ConflictRetries, func() (domain.Ledger, error) {
		return storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (domain.Ledger, error) {
			return s.users.UpdateLedger(ctx, userID, func(l *domain.Ledger) (bool, error) {
				changed, err := applyCompletion(l, cat, story, starsEarned)
				if changed {
					l.Version++
					l.UpdatedAt = s.opts.Now()
				}
				applied = changed
				return changed, err
			})
		})
	})
	if err != nil {
		s.log.Error("complete story failed", "user_id", userID, "story_id", storyID, "kind", domain.KindOf(err), "error", err)
		return domain.Ledger{}, err
	}
	if applied {
		s.log.Info("story completed", "user_id", userID, "story_id", storyID, "stars", ledger.CurrentStars)
	} else {
		s.log.Debug("story already completed", "user_id", userID, "story_id", storyID)
	}
	return ledger, nil
}

// Progress returns the user's ledger summary.
func (s *ProgressionService) Progress(ctx context.Context, userID string) (domain.Progress, error) {
	cat, err := s.loadCatalog(ctx)
	if err != nil {
		return domain.Progress{}, err
	}
	ledger, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (domain.Ledger, error) {
		return s.users.GetLedger(ctx, userID)
	})
	if err != nil {
		return domain.Progress{}, err
	}
	return progressView(ledger, cat), nil
}

// LevelStates reports locked/unlocked/completed for every level of a topic.
func (s *ProgressionService) LevelStates(ctx context.Context, userID, topicID string) ([]domain.LevelState, error) {
	cat, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := cat.Topic(topicID); err != nil {
		return nil, err
	}
	ledger, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (domain.Ledger, error) {
		return s.users.GetLedger(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return levelStates(ledger, cat, topicID), nil
}

func (s *ProgressionService) loadCatalog(ctx context.Context) (*domain.Catalog, error) {
	cat, err := storeCall(ctx, s.opts.StoreTimeout, s.catalog.Catalog)
	if err != nil {
		s.log.Error("load catalog failed", "error", err)
	}
	return cat, err
}
