// Package content imports authored topics, levels, stories and quizzes from
// YAML documents.
package content

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"safety-stories-service/internal/domain"
)

//go:embed schema.json
var schemaJSON string

//go:embed seed.yaml
var sampleYAML []byte

var schema = mustSchema()

func mustSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("content schema: %v", err))
	}
	return s
}

// Document is the nested authoring format; it flattens into domain.CatalogData.
type Document struct {
	Topics []TopicDoc `yaml:"topics"`
}

type TopicDoc struct {
	domain.Topic `yaml:",inline"`
	Levels       []LevelDoc `yaml:"levels"`
}

type LevelDoc struct {
	ID                    string     `yaml:"id"`
	LevelNumber           int        `yaml:"levelNumber"`
	StarsRequiredToUnlock int        `yaml:"starsRequiredToUnlock"`
	ImageURL              string     `yaml:"imageUrl"`
	Stories               []StoryDoc `yaml:"stories"`
}

type StoryDoc struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	EndScene    *int           `yaml:"endScene"`
	Scenes      []domain.Scene `yaml:"scenes"`
	Quiz        []QuestionDoc  `yaml:"quiz"`
}

type QuestionDoc struct {
	ID            string   `yaml:"id"`
	Question      string   `yaml:"question"`
	Options       []string `yaml:"options"`
	CorrectAnswer string   `yaml:"correctAnswer"`
}

// Parse validates raw against the content schema and builds a catalog, which
// also checks references and every story graph.
func Parse(raw []byte) (*domain.Catalog, error) {
	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, domain.Validationf("content is not valid YAML: %v", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(generic))
	if err != nil {
		return nil, domain.Validationf("content schema check: %v", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, domain.Validationf("content does not match schema: %s", strings.Join(msgs, "; "))
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, domain.Validationf("decode content: %v", err)
	}
	return domain.NewCatalog(doc.Flatten())
}

// Flatten converts the nested document into the catalog's flat form.
func (d Document) Flatten() domain.CatalogData {
	var data domain.CatalogData
	for _, t := range d.Topics {
		data.Topics = append(data.Topics, t.Topic)
		for _, l := range t.Levels {
			data.Levels = append(data.Levels, domain.Level{
				ID:                    l.ID,
				TopicID:               t.ID,
				LevelNumber:           l.LevelNumber,
				StarsRequiredToUnlock: l.StarsRequiredToUnlock,
				ImageURL:              l.ImageURL,
			})
			for _, s := range l.Stories {
				data.Stories = append(data.Stories, domain.Story{
					ID:          s.ID,
					TopicID:     t.ID,
					LevelID:     l.ID,
					Title:       s.Title,
					Description: s.Description,
					EndScene:    s.EndScene,
					Scenes:      s.Scenes,
				})
				for _, q := range s.Quiz {
					data.Quizzes = append(data.Quizzes, domain.QuizQuestion{
						ID:            q.ID,
						StoryID:       s.ID,
						Question:      q.Question,
						Options:       q.Options,
						CorrectAnswer: q.CorrectAnswer,
					})
				}
			}
		}
	}
	return data
}

// LoadFile parses the content document at path.
func LoadFile(path string) (*domain.Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	cat, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Sample returns the built-in "Child Safety" content.
func Sample() *domain.Catalog {
	cat, err := Parse(sampleYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded sample content: %v", err))
	}
	return cat
}

// Loader serves a parsed catalog as a memory.CatalogLoader.
type Loader struct {
	catalog *domain.Catalog
}

func NewLoader(cat *domain.Catalog) *Loader {
	return &Loader{catalog: cat}
}

func (l *Loader) LoadCatalog(ctx context.Context) (domain.CatalogData, error) {
	if err := ctx.Err(); err != nil {
		return domain.CatalogData{}, err
	}
	return l.catalog.Data(), nil
}
