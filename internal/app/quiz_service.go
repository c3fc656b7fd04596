package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/logger"
)

// QuizService scores quiz attempts and keeps the quiz-progress projection.
type QuizService struct {
	progress    QuizProgressRepository
	users       UserRepository
	catalog     CatalogRepository
	leaderboard *LeaderboardService
	log         *logger.Logger
	opts        Options
	newID       func() string
}

func NewQuizService(progress QuizProgressRepository, users UserRepository, catalog CatalogRepository, leaderboard *LeaderboardService, log *logger.Logger, opts Options) *QuizService {
	if log == nil {
		log = logger.Nop()
	}
	return &QuizService{
		progress:    progress,
		users:       users,
		catalog:     catalog,
		leaderboard: leaderboard,
		log:         log,
		opts:        opts.withDefaults(),
		newID:       uuid.NewString,
	}
}

// QuizForStory returns the story's questions with correct answers removed.
func (s *QuizService) QuizForStory(ctx context.Context, storyID string) ([]domain.QuizQuestion, error) {
	cat, err := storeCall(ctx, s.opts.StoreTimeout, s.catalog.Catalog)
	if err != nil {
		return nil, err
	}
	if _, err := cat.Story(storyID); err != nil {
		return nil, err
	}
	questions := cat.QuizForStory(storyID)
	if len(questions) == 0 {
		return nil, domain.ErrQuizNotFound
	}
	out := make([]domain.QuizQuestion, len(questions))
	for i, q := range questions {
		q.Options = append([]string{}, q.Options...)
		q.CorrectAnswer = ""
		out[i] = q
	}
	return out, nil
}

// SubmitQuiz scores answers against the story's quiz, records the attempt and
// submits the score to the leaderboard.
func (s *QuizService) SubmitQuiz(ctx context.Context, userID, storyID string, answers []domain.QuizAnswer) (domain.QuizProgress, error) {
	if userID == "" || storyID == "" {
		return domain.QuizProgress{}, domain.Validationf("userId and story are required")
	}
	if _, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.users.GetUser(ctx, userID)
	}); err != nil {
		return domain.QuizProgress{}, err
	}
	cat, err := storeCall(ctx, s.opts.StoreTimeout, s.catalog.Catalog)
	if err != nil {
		return domain.QuizProgress{}, err
	}
	story, err := cat.Story(storyID)
	if err != nil {
		return domain.QuizProgress{}, err
	}
	questions := cat.QuizForStory(storyID)
	if len(questions) == 0 {
		return domain.QuizProgress{}, domain.ErrQuizNotFound
	}

	score, records, err := scoreSubmission(questions, answers)
	if err != nil {
		return domain.QuizProgress{}, err
	}

	progress := domain.QuizProgress{
		ID:             s.newID(),
		UserID:         userID,
		StoryID:        story.ID,
		TopicID:        story.TopicID,
		LevelID:        story.LevelID,
		Score:          score,
		TotalQuestions: len(questions),
		Answers:        records,
		CreatedAt:      s.opts.Now(),
	}
	if _, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.progress.Add(ctx, progress)
	}); err != nil {
		s.log.Error("record quiz progress failed", "user_id", userID, "story_id", storyID, "error", err)
		return domain.QuizProgress{}, err
	}

	if s.leaderboard != nil {
		if _, err := s.leaderboard.Submit(ctx, ScoreSubmission{
			UserID:  userID,
			StoryID: story.ID,
			TopicID: story.TopicID,
			LevelID: story.LevelID,
			Score:   score,
		}); err != nil {
			return progress, fmt.Errorf("submit quiz score: %w", err)
		}
	}
	s.log.Info("quiz submitted", "user_id", userID, "story_id", storyID, "score", score, "total", len(questions))
	return progress, nil
}

// Summary derives stars and completions from quiz-progress rows alone. It is an
// analytics projection and may disagree with the ledger.
func (s *QuizService) Summary(ctx context.Context, userID string) (domain.QuizSummary, error) {
	rows, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) ([]domain.QuizProgress, error) {
		return s.progress.ListByUser(ctx, userID)
	})
	if err != nil {
		return domain.QuizSummary{}, err
	}
	return AggregateQuizProgress(rows), nil
}

// PurgeUser drops every recorded attempt of userID.
func (s *QuizService) PurgeUser(ctx context.Context, userID string) error {
	_, err := storeCall(ctx, s.opts.StoreTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.progress.DeleteByUser(ctx, userID)
	})
	return err
}

// AggregateQuizProgress sums scores and collects unique stories and levels in
// first-seen order.
func AggregateQuizProgress(rows []domain.QuizProgress) domain.QuizSummary {
	summary := domain.QuizSummary{CompletedStories: []string{}, CompletedLevels: []string{}}
	for _, p := range rows {
		summary.CurrentStars += p.Score
		if p.StoryID != "" && !slices.Contains(summary.CompletedStories, p.StoryID) {
			summary.CompletedStories = append(summary.CompletedStories, p.StoryID)
		}
		if p.LevelID != "" && !slices.Contains(summary.CompletedLevels, p.LevelID) {
			summary.CompletedLevels = append(summary.CompletedLevels, p.LevelID)
		}
	}
	return summary
}

// scoreSubmission grades answers and returns one record per question in quiz order.
func scoreSubmission(questions []domain.QuizQuestion, answers []domain.QuizAnswer) (int, []domain.QuizAnswer, error) {
	selected := make(map[string]string, len(answers))
	for _, a := range answers {
		idx := slices.IndexFunc(questions, func(q domain.QuizQuestion) bool { return q.ID == a.QuizID })
		if idx < 0 {
			return 0, nil, domain.Validationf("unknown quiz question %q", a.QuizID)
		}
		if a.SelectedAnswer != "" && !slices.Contains(questions[idx].Options, a.SelectedAnswer) {
			return 0, nil, domain.Validationf("answer %q is not an option of question %q", a.SelectedAnswer, a.QuizID)
		}
		selected[a.QuizID] = a.SelectedAnswer
	}

	score := 0
	records := make([]domain.QuizAnswer, 0, len(questions))
	for _, q := range questions {
		choice := selected[q.ID]
		correct := choice != "" && choice == q.CorrectAnswer
		if correct {
			score++
		}
		records = append(records, domain.QuizAnswer{QuizID: q.ID, SelectedAnswer: choice, IsCorrect: correct})
	}
	return score, records, nil
}
