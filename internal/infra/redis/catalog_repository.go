package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/infra/memory"
)

const catalogKey = "content:catalog"

// CatalogRepository shares the authored content across instances through Redis
// and falls back to the loader on a miss.
// Content is stored as: SET content:catalog {json CatalogData} EX ttl
type CatalogRepository struct {
	client *redis.Client
	loader memory.CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand

	// the last decoded payload, so a cache hit does not rebuild indexes
	mu      sync.Mutex
	lastRaw string
	lastCat *domain.Catalog
}

func NewCatalogRepository(client *redis.Client, loader memory.CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) Catalog(ctx context.Context) (*domain.Catalog, error) {
	if cat, ok := r.fromCache(ctx); ok {
		return cat, nil
	}

	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another instance filled it.
		if cat, ok := r.fromCache(ctx); ok {
			return cat, nil
		}

		data, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return nil, err
		}
		cat, err := domain.NewCatalog(data)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(cat.Data())
		if err != nil {
			return nil, err
		}
		// best-effort: a failed write only costs another load
		_ = r.client.Set(ctx, catalogKey, raw, r.ttlWithJitter()).Err()
		r.remember(string(raw), cat)
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Catalog), nil
}

// Invalidate removes the shared copy so every instance reloads.
func (r *CatalogRepository) Invalidate(ctx context.Context) error {
	r.remember("", nil)
	return r.client.Del(ctx, catalogKey).Err()
}

func (r *CatalogRepository) fromCache(ctx context.Context) (*domain.Catalog, bool) {
	raw, err := r.client.Get(ctx, catalogKey).Result()
	if err != nil {
		return nil, false
	}
	r.mu.Lock()
	if raw == r.lastRaw && r.lastCat != nil {
		cat := r.lastCat
		r.mu.Unlock()
		return cat, true
	}
	r.mu.Unlock()

	var data domain.CatalogData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false
	}
	cat, err := domain.NewCatalog(data)
	if err != nil {
		return nil, false
	}
	r.remember(raw, cat)
	return cat, true
}

func (r *CatalogRepository) remember(raw string, cat *domain.Catalog) {
	r.mu.Lock()
	r.lastRaw, r.lastCat = raw, cat
	r.mu.Unlock()
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// isMiss reports a missing key.
func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
