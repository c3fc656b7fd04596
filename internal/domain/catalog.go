package domain

import (
	"slices"
	"sort"
)

// CatalogData is the serializable form of all authored content.
type CatalogData struct {
	Topics  []Topic        `json:"topics" yaml:"topics"`
	Levels  []Level        `json:"levels" yaml:"levels"`
	Stories []Story        `json:"stories" yaml:"stories"`
	Quizzes []QuizQuestion `json:"quizzes" yaml:"quizzes"`
}

// Catalog is an immutable, validated, indexed snapshot of authored content.
// Authored content is replaced wholesale by building a new Catalog.
type Catalog struct {
	data           CatalogData
	topics         map[string]Topic
	levels         map[string]Level
	stories        map[string]Story
	levelsByTopic  map[string][]Level
	storiesByLevel map[string][]Story
	quizzesByStory map[string][]QuizQuestion
}

// NewCatalog validates data and builds lookup indexes.
func NewCatalog(data CatalogData) (*Catalog, error) {
	c := &Catalog{
		topics:         make(map[string]Topic, len(data.Topics)),
		levels:         make(map[string]Level, len(data.Levels)),
		stories:        make(map[string]Story, len(data.Stories)),
		levelsByTopic:  make(map[string][]Level),
		storiesByLevel: make(map[string][]Story),
		quizzesByStory: make(map[string][]QuizQuestion),
	}

	names := make(map[string]bool)
	for _, t := range data.Topics {
		if t.ID == "" || t.Name == "" {
			return nil, Validationf("topic requires id and name")
		}
		if _, dup := c.topics[t.ID]; dup {
			return nil, Validationf("duplicate topic id %q", t.ID)
		}
		if names[t.Name] {
			return nil, Validationf("duplicate topic name %q", t.Name)
		}
		names[t.Name] = true
		c.topics[t.ID] = t
	}

	numbers := make(map[string]map[int]bool)
	for _, l := range data.Levels {
		if l.ID == "" {
			return nil, Validationf("level requires id")
		}
		if _, dup := c.levels[l.ID]; dup {
			return nil, Validationf("duplicate level id %q", l.ID)
		}
		if _, ok := c.topics[l.TopicID]; !ok {
			return nil, Validationf("level %q references unknown topic %q", l.ID, l.TopicID)
		}
		if l.StarsRequiredToUnlock < 0 {
			return nil, Validationf("level %q has negative unlock threshold", l.ID)
		}
		if numbers[l.TopicID] == nil {
			numbers[l.TopicID] = make(map[int]bool)
		}
		if numbers[l.TopicID][l.LevelNumber] {
			return nil, Validationf("topic %q has duplicate level number %d", l.TopicID, l.LevelNumber)
		}
		numbers[l.TopicID][l.LevelNumber] = true
		c.levels[l.ID] = l
		c.levelsByTopic[l.TopicID] = append(c.levelsByTopic[l.TopicID], l)
	}
	for topicID := range c.levelsByTopic {
		levels := c.levelsByTopic[topicID]
		sort.Slice(levels, func(i, j int) bool { return levels[i].LevelNumber < levels[j].LevelNumber })
	}

	titles := make(map[string]bool)
	stories := make([]Story, 0, len(data.Stories))
	for _, s := range data.Stories {
		if s.ID == "" || s.Title == "" {
			return nil, Validationf("story requires id and title")
		}
		if _, dup := c.stories[s.ID]; dup {
			return nil, Validationf("duplicate story id %q", s.ID)
		}
		if titles[s.Title] {
			return nil, Validationf("duplicate story title %q", s.Title)
		}
		level, ok := c.levels[s.LevelID]
		if !ok {
			return nil, Validationf("story %q references unknown level %q", s.ID, s.LevelID)
		}
		if s.TopicID == "" {
			s.TopicID = level.TopicID
		}
		if s.TopicID != level.TopicID {
			return nil, Validationf("story %q topic %q does not match level topic %q", s.ID, s.TopicID, level.TopicID)
		}
		if err := ValidateGraph(s); err != nil {
			return nil, err
		}
		titles[s.Title] = true
		c.stories[s.ID] = s
		c.storiesByLevel[s.LevelID] = append(c.storiesByLevel[s.LevelID], s)
		stories = append(stories, s)
	}

	for _, q := range data.Quizzes {
		if q.ID == "" || q.Question == "" {
			return nil, Validationf("quiz question requires id and question")
		}
		if _, ok := c.stories[q.StoryID]; !ok {
			return nil, Validationf("quiz %q references unknown story %q", q.ID, q.StoryID)
		}
		if !slices.Contains(q.Options, q.CorrectAnswer) {
			return nil, Validationf("quiz %q correct answer is not one of its options", q.ID)
		}
		c.quizzesByStory[q.StoryID] = append(c.quizzesByStory[q.StoryID], q)
	}

	data.Stories = stories
	c.data = data
	return c, nil
}

// Data returns the content the catalog was built from.
func (c *Catalog) Data() CatalogData { return c.data }

func (c *Catalog) Topics() []Topic { return c.data.Topics }

func (c *Catalog) Topic(id string) (Topic, error) {
	t, ok := c.topics[id]
	if !ok {
		return Topic{}, ErrTopicNotFound
	}
	return t, nil
}

func (c *Catalog) Level(id string) (Level, error) {
	l, ok := c.levels[id]
	if !ok {
		return Level{}, ErrLevelNotFound
	}
	return l, nil
}

func (c *Catalog) Story(id string) (Story, error) {
	s, ok := c.stories[id]
	if !ok {
		return Story{}, ErrStoryNotFound
	}
	return s, nil
}

// LevelsInTopic returns the topic's levels ordered by level number.
func (c *Catalog) LevelsInTopic(topicID string) []Level {
	return c.levelsByTopic[topicID]
}

func (c *Catalog) StoriesInLevel(levelID string) []Story {
	return c.storiesByLevel[levelID]
}

func (c *Catalog) QuizForStory(storyID string) []QuizQuestion {
	return c.quizzesByStory[storyID]
}

// FirstLevels returns the first level id of every topic that has levels.
func (c *Catalog) FirstLevels() []string {
	out := make([]string, 0, len(c.levelsByTopic))
	for _, t := range c.data.Topics {
		if levels := c.levelsByTopic[t.ID]; len(levels) > 0 {
			out = append(out, levels[0].ID)
		}
	}
	return out
}
