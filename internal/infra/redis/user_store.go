package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"safety-stories-service/internal/domain"
)

// UserStore keeps profiles and ledgers in Redis. Ledger updates use
// WATCH/MULTI; losing the race surfaces as domain.ErrConflict for the caller
// to retry.
//
//	user:{id}   -> json domain.User
//	ledger:{id} -> json domain.Ledger
type UserStore struct {
	client *redis.Client
}

func NewUserStore(client *redis.Client) *UserStore {
	return &UserStore{client: client}
}

func (s *UserStore) UpsertUser(ctx context.Context, user domain.User, initial domain.Ledger) (domain.User, error) {
	userKey, ledgerKey := s.userKey(user.ID), s.ledgerKey(user.ID)
	var stored domain.User
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := getJSON[domain.User](ctx, tx, userKey)
		switch {
		case err == nil:
			user.CreatedAt = existing.CreatedAt
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		userRaw, err := json.Marshal(user)
		if err != nil {
			return err
		}
		ledgerRaw, err := json.Marshal(initial)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey, userRaw, 0)
			// an existing ledger is never reset
			pipe.SetNX(ctx, ledgerKey, ledgerRaw, 0)
			return nil
		})
		stored = user
		return err
	}, userKey)
	if err != nil {
		return domain.User{}, mapTxErr(err)
	}
	return stored, nil
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return getJSON[domain.User](ctx, s.client, s.userKey(userID))
}

func (s *UserStore) DeleteUser(ctx context.Context, userID string) error {
	n, err := s.client.Del(ctx, s.userKey(userID), s.ledgerKey(userID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) GetLedger(ctx context.Context, userID string) (domain.Ledger, error) {
	return getJSON[domain.Ledger](ctx, s.client, s.ledgerKey(userID))
}

func (s *UserStore) UpdateLedger(ctx context.Context, userID string, mutate func(*domain.Ledger) (bool, error)) (domain.Ledger, error) {
	key := s.ledgerKey(userID)
	var result domain.Ledger
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		ledger, err := getJSON[domain.Ledger](ctx, tx, key)
		if err != nil {
			return err
		}
		next := ledger.Clone()
		changed, err := mutate(&next)
		if err != nil {
			return err
		}
		if !changed {
			result = ledger
			return nil
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		result = next
		return err
	}, key)
	if err != nil {
		return domain.Ledger{}, mapTxErr(err)
	}
	return result, nil
}

func (s *UserStore) userKey(userID string) string {
	return "user:" + userID
}

func (s *UserStore) ledgerKey(userID string) string {
	return "ledger:" + userID
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getJSON[T any](ctx context.Context, c getter, key string) (T, error) {
	var out T
	raw, err := c.Get(ctx, key).Bytes()
	if isMiss(err) {
		return out, domain.ErrUserNotFound
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func mapTxErr(err error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrConflict
	}
	return err
}
