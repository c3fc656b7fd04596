package app

import (
	"safety-stories-service/internal/domain"
)

// applyCompletion is the story-completion transition. It reports whether the
// ledger changed; re-completing a story is a no-op.
func applyCompletion(l *domain.Ledger, cat *domain.Catalog, story domain.Story, stars int) (bool, error) {
	if l.HasCompletedStory(story.ID) {
		return false, nil
	}
	ensureFirstLevels(l, cat)
	if !l.IsUnlocked(story.LevelID) {
		return false, domain.ErrLevelLocked
	}

	l.CompletedStories = append(l.CompletedStories, story.ID)
	l.CurrentStars += stars

	if !l.HasCompletedLevel(story.LevelID) && levelDone(l, cat, story.LevelID) {
		l.CompletedLevels = append(l.CompletedLevels, story.LevelID)
	}
	sweepUnlocks(l, cat)
	return true, nil
}

func ensureFirstLevels(l *domain.Ledger, cat *domain.Catalog) {
	for _, id := range cat.FirstLevels() {
		if !l.IsUnlocked(id) {
			l.UnlockedLevels = append(l.UnlockedLevels, id)
		}
	}
}

func levelDone(l *domain.Ledger, cat *domain.Catalog, levelID string) bool {
	stories := cat.StoriesInLevel(levelID)
	if len(stories) == 0 {
		return false
	}
	for _, s := range stories {
		if !l.HasCompletedStory(s.ID) {
			return false
		}
	}
	return true
}

// sweepUnlocks unlocks every level whose predecessor is completed and whose
// threshold is met. Stars are global, so every topic is re-checked: stars
// earned in one topic can open a level that was waiting only on its threshold.
func sweepUnlocks(l *domain.Ledger, cat *domain.Catalog) {
	for _, topic := range cat.Topics() {
		levels := cat.LevelsInTopic(topic.ID)
		for i, lvl := range levels {
			if l.IsUnlocked(lvl.ID) {
				continue
			}
			if i > 0 && !l.HasCompletedLevel(levels[i-1].ID) {
				continue
			}
			if l.CurrentStars >= lvl.StarsRequiredToUnlock {
				l.UnlockedLevels = append(l.UnlockedLevels, lvl.ID)
			}
		}
	}
}

// progressView renders a ledger; first levels are always reported unlocked.
func progressView(l domain.Ledger, cat *domain.Catalog) domain.Progress {
	unlocked := append([]string{}, l.UnlockedLevels...)
	for _, id := range cat.FirstLevels() {
		if !l.IsUnlocked(id) {
			unlocked = append(unlocked, id)
		}
	}
	return domain.Progress{
		CurrentStars:     l.CurrentStars,
		CompletedLevels:  append([]string{}, l.CompletedLevels...),
		CompletedStories: append([]string{}, l.CompletedStories...),
		UnlockedLevels:   unlocked,
	}
}

func levelStates(l domain.Ledger, cat *domain.Catalog, topicID string) []domain.LevelState {
	levels := cat.LevelsInTopic(topicID)
	out := make([]domain.LevelState, 0, len(levels))
	for i, lvl := range levels {
		status := domain.LevelLocked
		switch {
		case l.HasCompletedLevel(lvl.ID):
			status = domain.LevelCompleted
		case i == 0 || l.IsUnlocked(lvl.ID):
			status = domain.LevelUnlocked
		}
		out = append(out, domain.LevelState{Level: lvl, Status: status})
	}
	return out
}
