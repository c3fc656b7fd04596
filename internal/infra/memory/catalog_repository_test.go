package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"safety-stories-service/internal/domain"
)

func TestCatalogRepositoryCaches(t *testing.T) {
	loader := &countingLoader{CatalogLoader: NewStaticCatalogLoader(sampleCatalog())}
	repo := NewCatalogRepository(loader, time.Minute)

	if _, err := repo.Catalog(context.Background()); err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if _, err := repo.Catalog(context.Background()); err != nil {
		t.Fatalf("get catalog 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}

	repo.Invalidate()
	if _, err := repo.Catalog(context.Background()); err != nil {
		t.Fatalf("get catalog 3: %v", err)
	}
	if loader.count() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.count())
	}
}

func TestCatalogRepositoryExpires(t *testing.T) {
	loader := &countingLoader{CatalogLoader: NewStaticCatalogLoader(sampleCatalog())}
	repo := NewCatalogRepository(loader, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	repo.clock = func() time.Time { return now }

	_, _ = repo.Catalog(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = repo.Catalog(context.Background())
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}
}

func TestCatalogRepositoryCollapsesConcurrentLoads(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{CatalogLoader: NewStaticCatalogLoader(sampleCatalog()), gate: release}
	repo := NewCatalogRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Catalog(context.Background()); err != nil {
				t.Errorf("get catalog: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if loader.count() != 1 {
		t.Fatalf("expected one load, got %d", loader.count())
	}
}

func TestCatalogRepositoryRejectsInvalidContent(t *testing.T) {
	data := sampleCatalog()
	data.Stories[0].Scenes[0].Options[0].To = 42
	repo := NewCatalogRepository(NewStaticCatalogLoader(data), time.Minute)

	if _, err := repo.Catalog(context.Background()); !errors.Is(err, domain.ErrInvalidGraph) {
		t.Fatalf("expected invalid graph, got %v", err)
	}
}

type countingLoader struct {
	CatalogLoader
	gate  chan struct{}
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadCatalog(ctx context.Context) (domain.CatalogData, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.gate != nil {
		<-l.gate
	}
	return l.CatalogLoader.LoadCatalog(ctx)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleCatalog() domain.CatalogData {
	return domain.CatalogData{
		Topics: []domain.Topic{{ID: "safety", Name: "Safety"}},
		Levels: []domain.Level{{ID: "level-1", TopicID: "safety", LevelNumber: 1}},
		Stories: []domain.Story{{
			ID:      "story-a",
			LevelID: "level-1",
			Title:   "Stranger Danger",
			Scenes: []domain.Scene{
				{Title: "park", Options: []domain.Option{{Text: "Next", To: 1}}},
				{Title: "home", Options: []domain.Option{{Text: "End Story", To: 0}}},
			},
		}},
	}
}
