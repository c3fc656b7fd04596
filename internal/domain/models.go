package domain

import (
	"slices"
	"time"
)

// Topic is a named subject area grouping levels.
type Topic struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	ImageURL    string `json:"imageUrl,omitempty" yaml:"imageUrl"`
}

// Level is one step of a topic, gated by a star threshold.
type Level struct {
	ID                    string `json:"id" yaml:"id"`
	TopicID               string `json:"topicId" yaml:"topicId"`
	LevelNumber           int    `json:"levelNumber" yaml:"levelNumber"`
	StarsRequiredToUnlock int    `json:"starsRequiredToUnlock" yaml:"starsRequiredToUnlock"`
	ImageURL              string `json:"imageUrl,omitempty" yaml:"imageUrl"`
}

// Option is a labeled edge from one scene to another.
type Option struct {
	Text string `json:"text" yaml:"text"`
	To   int    `json:"to" yaml:"to"`
}

// Scene is an index-addressed node of a story graph.
type Scene struct {
	Title   string   `json:"title" yaml:"title"`
	Image   string   `json:"image,omitempty" yaml:"image"`
	Options []Option `json:"options" yaml:"options"`
}

// Story is a branching narrative belonging to one level.
// EndScene is the designated ending scene; nil means the last scene.
type Story struct {
	ID          string  `json:"id" yaml:"id"`
	TopicID     string  `json:"topicId" yaml:"topicId"`
	LevelID     string  `json:"levelId" yaml:"levelId"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description,omitempty" yaml:"description"`
	EndScene    *int    `json:"endScene,omitempty" yaml:"endScene"`
	Scenes      []Scene `json:"scenes" yaml:"scenes"`
}

// QuizQuestion is one multiple-choice question attached to a story.
type QuizQuestion struct {
	ID            string   `json:"id" yaml:"id"`
	StoryID       string   `json:"storyId" yaml:"storyId"`
	Question      string   `json:"question" yaml:"question"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty" yaml:"correctAnswer"`
}

// User is a learner profile keyed by the identity provider's opaque id.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ledger is the per-user progression record.
type Ledger struct {
	UserID           string    `json:"userId"`
	CurrentStars     int       `json:"currentStars"`
	CompletedStories []string  `json:"completedStories"`
	CompletedLevels  []string  `json:"completedLevels"`
	UnlockedLevels   []string  `json:"unlockedLevels"`
	Version          int64     `json:"version"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewLedger returns an empty ledger for userID.
func NewLedger(userID string, now time.Time) Ledger {
	return Ledger{
		UserID:           userID,
		CompletedStories: []string{},
		CompletedLevels:  []string{},
		UnlockedLevels:   []string{},
		UpdatedAt:        now,
	}
}

func (l Ledger) HasCompletedStory(storyID string) bool {
	return slices.Contains(l.CompletedStories, storyID)
}

func (l Ledger) HasCompletedLevel(levelID string) bool {
	return slices.Contains(l.CompletedLevels, levelID)
}

func (l Ledger) IsUnlocked(levelID string) bool {
	return slices.Contains(l.UnlockedLevels, levelID)
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (l Ledger) Clone() Ledger {
	out := l
	out.CompletedStories = append([]string{}, l.CompletedStories...)
	out.CompletedLevels = append([]string{}, l.CompletedLevels...)
	out.UnlockedLevels = append([]string{}, l.UnlockedLevels...)
	return out
}

// Progress is the public view of a ledger.
type Progress struct {
	CurrentStars     int      `json:"currentStars"`
	CompletedLevels  []string `json:"completedLevels"`
	CompletedStories []string `json:"completedStories"`
	UnlockedLevels   []string `json:"unlockedLevels"`
}

// LevelStatus is the state of one level for one user.
type LevelStatus string

const (
	LevelLocked    LevelStatus = "locked"
	LevelUnlocked  LevelStatus = "unlocked"
	LevelCompleted LevelStatus = "completed"
)

// LevelState pairs a level with the user's status for it.
type LevelState struct {
	Level  Level       `json:"level"`
	Status LevelStatus `json:"status"`
}

// LeaderboardEntry is the single ranking row for a (user, story) pair.
type LeaderboardEntry struct {
	UserID    string    `json:"userId"`
	StoryID   string    `json:"story"`
	TopicID   string    `json:"topic"`
	LevelID   string    `json:"level"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
	// Seq orders submissions; a later submission always carries a larger Seq.
	Seq int64 `json:"-"`
}

// OverallEntry is one row of the aggregate ranking.
type OverallEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"userId"`
	Username   string `json:"username,omitempty"`
	TotalScore int    `json:"totalScore"`
	TopicID    string `json:"topic"`
	LevelID    string `json:"level"`
}

// StoryLeaderboard is a ranked snapshot for one story.
type StoryLeaderboard struct {
	StoryID   string             `json:"storyId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// LeaderboardFilter narrows a filtered leaderboard query; empty fields match all.
type LeaderboardFilter struct {
	TopicID string
	LevelID string
	StoryID string
}

// QuizAnswer is the learner's choice for one question.
type QuizAnswer struct {
	QuizID         string `json:"quizId"`
	SelectedAnswer string `json:"selectedAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
}

// QuizProgress records one submitted quiz attempt.
type QuizProgress struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user"`
	StoryID        string       `json:"story"`
	TopicID        string       `json:"topic"`
	LevelID        string       `json:"level"`
	Score          int          `json:"score"`
	TotalQuestions int          `json:"totalQuestions"`
	Answers        []QuizAnswer `json:"answers"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// QuizSummary is derived from quiz-progress rows only; the ledger stays authoritative.
type QuizSummary struct {
	CurrentStars     int      `json:"currentStars"`
	CompletedStories []string `json:"completedStories"`
	CompletedLevels  []string `json:"completedLevels"`
}
