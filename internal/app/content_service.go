package app

import (
	"context"

	"safety-stories-service/internal/domain"
)

// ContentService exposes read-only authored content to learners.
type ContentService struct {
	catalog CatalogRepository
	opts    Options
}

func NewContentService(catalog CatalogRepository, opts Options) *ContentService {
	return &ContentService{catalog: catalog, opts: opts.withDefaults()}
}

func (s *ContentService) load(ctx context.Context) (*domain.Catalog, error) {
	return storeCall(ctx, s.opts.StoreTimeout, s.catalog.Catalog)
}

func (s *ContentService) Topics(ctx context.Context) ([]domain.Topic, error) {
	cat, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return cat.Topics(), nil
}

func (s *ContentService) Levels(ctx context.Context, topicID string) ([]domain.Level, error) {
	cat, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := cat.Topic(topicID); err != nil {
		return nil, err
	}
	return cat.LevelsInTopic(topicID), nil
}

func (s *ContentService) Stories(ctx context.Context, levelID string) ([]domain.Story, error) {
	cat, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := cat.Level(levelID); err != nil {
		return nil, err
	}
	return cat.StoriesInLevel(levelID), nil
}

func (s *ContentService) Story(ctx context.Context, storyID string) (domain.Story, error) {
	cat, err := s.load(ctx)
	if err != nil {
		return domain.Story{}, err
	}
	return cat.Story(storyID)
}

// NextScene resolves one step of story traversal for the rendering client.
func (s *ContentService) NextScene(ctx context.Context, storyID string, sceneIndex, optionIndex int) (domain.Scene, int, error) {
	story, err := s.Story(ctx, storyID)
	if err != nil {
		return domain.Scene{}, 0, err
	}
	return domain.NextScene(story, sceneIndex, optionIndex)
}
