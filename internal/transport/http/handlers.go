package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"safety-stories-service/internal/app"
	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/logger"
)

// Handler serves the REST API over the application services.
type Handler struct {
	progression *app.ProgressionService
	leaderboard *app.LeaderboardService
	quiz        *app.QuizService
	content     *app.ContentService
	log         *logger.Logger
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := ensureSubject(r, req.ID); err != nil {
		writeError(w, h.log, err)
		return
	}
	user, err := h.progression.RegisterUser(r.Context(), domain.User{
		ID:        req.ID,
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.progression.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.progression.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) completeStory(w http.ResponseWriter, r *http.Request) {
	var req completeStoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	stars := app.DefaultStarsEarned
	if req.StarsEarned != nil {
		stars = *req.StarsEarned
	}
	ledger, err := h.progression.CompleteStory(r.Context(), chi.URLParam(r, "id"), req.StoryID, stars)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, ledger)
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.progression.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, progress)
}

func (h *Handler) levelStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.progression.LevelStates(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "topicId"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, states)
}

func (h *Handler) submitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := ensureSubject(r, req.UserID); err != nil {
		writeError(w, h.log, err)
		return
	}
	entry, err := h.leaderboard.Submit(r.Context(), app.ScoreSubmission{
		UserID:  req.UserID,
		StoryID: req.StoryID,
		TopicID: req.TopicID,
		LevelID: req.LevelID,
		Score:   *req.Score,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, entry)
}

func (h *Handler) storyLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.leaderboard.ByStory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, lb.Entries)
}

func (h *Handler) overallLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.leaderboard.Overall(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, rows)
}

func (h *Handler) filteredLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.leaderboard.Filtered(r.Context(), domain.LeaderboardFilter{
		TopicID: q.Get("topic"),
		LevelID: q.Get("level"),
		StoryID: q.Get("story"),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, rows)
}

func (h *Handler) topics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.content.Topics(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, topics)
}

func (h *Handler) topicLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.content.Levels(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, levels)
}

func (h *Handler) levelStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.content.Stories(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, stories)
}

func (h *Handler) story(w http.ResponseWriter, r *http.Request) {
	story, err := h.content.Story(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, story)
}

type nextSceneResponse struct {
	SceneIndex int          `json:"sceneIndex"`
	Scene      domain.Scene `json:"scene"`
}

func (h *Handler) nextScene(w http.ResponseWriter, r *http.Request) {
	sceneIdx, err := strconv.Atoi(chi.URLParam(r, "scene"))
	if err != nil {
		writeError(w, h.log, domain.Validationf("scene must be an integer"))
		return
	}
	optionIdx, err := strconv.Atoi(chi.URLParam(r, "option"))
	if err != nil {
		writeError(w, h.log, domain.Validationf("option must be an integer"))
		return
	}
	scene, idx, err := h.content.NextScene(r.Context(), chi.URLParam(r, "id"), sceneIdx, optionIdx)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, nextSceneResponse{SceneIndex: idx, Scene: scene})
}

func (h *Handler) storyQuiz(w http.ResponseWriter, r *http.Request) {
	questions, err := h.quiz.QuizForStory(r.Context(), chi.URLParam(r, "storyId"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, questions)
}

func (h *Handler) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := ensureSubject(r, req.UserID); err != nil {
		writeError(w, h.log, err)
		return
	}
	answers := make([]domain.QuizAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, domain.QuizAnswer{QuizID: a.QuizID, SelectedAnswer: a.SelectedAnswer})
	}
	progress, err := h.quiz.SubmitQuiz(r.Context(), req.UserID, req.StoryID, answers)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, progress)
}

func (h *Handler) quizSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.quiz.Summary(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, summary)
}
