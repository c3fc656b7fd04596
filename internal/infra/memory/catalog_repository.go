package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"safety-stories-service/internal/domain"
)

// CatalogLoader fetches authored content from a backing store.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.CatalogData, error)
}

// CatalogRepository caches the validated catalog with a TTL so request paths
// do not hit the content store.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	catalog   *domain.Catalog
	expiresAt time.Time
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) Catalog(ctx context.Context) (*domain.Catalog, error) {
	if cat, ok := r.cached(r.clock()); ok {
		return cat, nil
	}

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		now := r.clock()
		if cat, ok := r.cached(now); ok {
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

		r.mu.Lock()
		r.catalog = cat
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Catalog), nil
}

// Invalidate drops the cached catalog; the next read reloads it.
func (r *CatalogRepository) Invalidate() {
	r.mu.Lock()
	r.catalog = nil
	r.mu.Unlock()
}

func (r *CatalogRepository) cached(now time.Time) (*domain.Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.catalog != nil && r.expiresAt.After(now) {
		return r.catalog, true
	}
	return nil, false
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves fixed content (useful for tests/demos).
type StaticCatalogLoader struct {
	data domain.CatalogData
}

func NewStaticCatalogLoader(data domain.CatalogData) *StaticCatalogLoader {
	return &StaticCatalogLoader{data: data}
}

func (l *StaticCatalogLoader) LoadCatalog(ctx context.Context) (domain.CatalogData, error) {
	if err := ctx.Err(); err != nil {
		return domain.CatalogData{}, err
	}
	return l.data, nil
}
