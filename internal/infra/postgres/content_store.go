package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"safety-stories-service/internal/domain"
)

type topicModel struct {
	bun.BaseModel `bun:"table:topics"`

	ID          string `bun:"id,pk"`
	Name        string `bun:"name,notnull"`
	Description string `bun:"description"`
	ImageURL    string `bun:"image_url"`
}

type levelModel struct {
	bun.BaseModel `bun:"table:levels"`

	ID                    string `bun:"id,pk"`
	TopicID               string `bun:"topic_id,notnull"`
	LevelNumber           int    `bun:"level_number,notnull"`
	StarsRequiredToUnlock int    `bun:"stars_required_to_unlock,notnull"`
	ImageURL              string `bun:"image_url"`
}

type storyModel struct {
	bun.BaseModel `bun:"table:stories"`

	ID          string         `bun:"id,pk"`
	TopicID     string         `bun:"topic_id,notnull"`
	LevelID     string         `bun:"level_id,notnull"`
	Title       string         `bun:"title,notnull"`
	Description string         `bun:"description"`
	EndScene    *int           `bun:"end_scene"`
	Scenes      []domain.Scene `bun:"scenes,type:jsonb,notnull"`
}

type quizQuestionModel struct {
	bun.BaseModel `bun:"table:quiz_questions"`

	ID            string   `bun:"id,pk"`
	StoryID       string   `bun:"story_id,notnull"`
	Position      int      `bun:"position,notnull"`
	Question      string   `bun:"question,notnull"`
	Options       []string `bun:"options,type:jsonb,notnull"`
	CorrectAnswer string   `bun:"correct_answer,notnull"`
}

// ContentStore reads and replaces authored content through bun.
type ContentStore struct {
	db *bun.DB
}

func NewContentStore(db *bun.DB) *ContentStore {
	return &ContentStore{db: db}
}

// LoadCatalog implements memory.CatalogLoader.
func (s *ContentStore) LoadCatalog(ctx context.Context) (domain.CatalogData, error) {
	var (
		topics    []topicModel
		levels    []levelModel
		stories   []storyModel
		questions []quizQuestionModel
	)
	if err := s.db.NewSelect().Model(&topics).OrderExpr("id").Scan(ctx); err != nil {
		return domain.CatalogData{}, fmt.Errorf("load topics: %w", err)
	}
	if err := s.db.NewSelect().Model(&levels).OrderExpr("topic_id, level_number").Scan(ctx); err != nil {
		return domain.CatalogData{}, fmt.Errorf("load levels: %w", err)
	}
	if err := s.db.NewSelect().Model(&stories).OrderExpr("level_id, id").Scan(ctx); err != nil {
		return domain.CatalogData{}, fmt.Errorf("load stories: %w", err)
	}
	if err := s.db.NewSelect().Model(&questions).OrderExpr("story_id, position").Scan(ctx); err != nil {
		return domain.CatalogData{}, fmt.Errorf("load quiz questions: %w", err)
	}

	data := domain.CatalogData{
		Topics:  make([]domain.Topic, 0, len(topics)),
		Levels:  make([]domain.Level, 0, len(levels)),
		Stories: make([]domain.Story, 0, len(stories)),
		Quizzes: make([]domain.QuizQuestion, 0, len(questions)),
	}
	for _, t := range topics {
		data.Topics = append(data.Topics, domain.Topic{ID: t.ID, Name: t.Name, Description: t.Description, ImageURL: t.ImageURL})
	}
	for _, l := range levels {
		data.Levels = append(data.Levels, domain.Level{
			ID:                    l.ID,
			TopicID:               l.TopicID,
			LevelNumber:           l.LevelNumber,
			StarsRequiredToUnlock: l.StarsRequiredToUnlock,
			ImageURL:              l.ImageURL,
		})
	}
	for _, st := range stories {
		data.Stories = append(data.Stories, domain.Story{
			ID:          st.ID,
			TopicID:     st.TopicID,
			LevelID:     st.LevelID,
			Title:       st.Title,
			Description: st.Description,
			EndScene:    st.EndScene,
			Scenes:      st.Scenes,
		})
	}
	for _, q := range questions {
		data.Quizzes = append(data.Quizzes, domain.QuizQuestion{
			ID:            q.ID,
			StoryID:       q.StoryID,
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return data, nil
}

// ReplaceCatalog validates cat's content and swaps it in atomically; readers
// see either the old content or the new one.
func (s *ContentStore) ReplaceCatalog(ctx context.Context, cat *domain.Catalog) error {
	data := cat.Data()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, table := range []string{"quiz_questions", "stories", "levels", "topics"} {
			if _, err := tx.NewDelete().TableExpr(table).Where("TRUE").Exec(ctx); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		if len(data.Topics) > 0 {
			rows := make([]topicModel, 0, len(data.Topics))
			for _, t := range data.Topics {
				rows = append(rows, topicModel{ID: t.ID, Name: t.Name, Description: t.Description, ImageURL: t.ImageURL})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("insert topics: %w", err)
			}
		}
		if len(data.Levels) > 0 {
			rows := make([]levelModel, 0, len(data.Levels))
			for _, l := range data.Levels {
				rows = append(rows, levelModel{
					ID:                    l.ID,
					TopicID:               l.TopicID,
					LevelNumber:           l.LevelNumber,
					StarsRequiredToUnlock: l.StarsRequiredToUnlock,
					ImageURL:              l.ImageURL,
				})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("insert levels: %w", err)
			}
		}
		if len(data.Stories) > 0 {
			rows := make([]storyModel, 0, len(data.Stories))
			for _, st := range data.Stories {
				rows = append(rows, storyModel{
					ID:          st.ID,
					TopicID:     st.TopicID,
					LevelID:     st.LevelID,
					Title:       st.Title,
					Description: st.Description,
					EndScene:    st.EndScene,
					Scenes:      st.Scenes,
				})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("insert stories: %w", err)
			}
		}
		if len(data.Quizzes) > 0 {
			rows := make([]quizQuestionModel, 0, len(data.Quizzes))
			positions := make(map[string]int)
			for _, q := range data.Quizzes {
				rows = append(rows, quizQuestionModel{
					ID:            q.ID,
					StoryID:       q.StoryID,
					Position:      positions[q.StoryID],
					Question:      q.Question,
					Options:       q.Options,
					CorrectAnswer: q.CorrectAnswer,
				})
				positions[q.StoryID]++
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("insert quiz questions: %w", err)
			}
		}
		return nil
	})
}
