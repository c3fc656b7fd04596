package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"safety-stories-service/internal/app"
	"safety-stories-service/internal/logger"
)

// Services bundles what the HTTP layer serves.
type Services struct {
	Progression *app.ProgressionService
	Leaderboard *app.LeaderboardService
	Quiz        *app.QuizService
	Content     *app.ContentService
}

// RouterConfig carries transport settings.
type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter builds the API handler.
func NewRouter(svc Services, cfg RouterConfig, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	h := &Handler{
		progression: svc.Progression,
		leaderboard: svc.Leaderboard,
		quiz:        svc.Quiz,
		content:     svc.Content,
		log:         log,
	}
	ws := NewWSHandler(svc.Leaderboard, log)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(corsHandler.Handler)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	// websocket streams outlive the request timeout
	r.Get("/ws/leaderboard", ws.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		r.Get("/topics", h.topics)
		r.Get("/topics/{id}/levels", h.topicLevels)
		r.Get("/levels/{id}/stories", h.levelStories)
		r.Get("/stories/{id}", h.story)
		r.Get("/stories/{id}/scenes/{scene}/options/{option}", h.nextScene)
		r.Get("/quizzes/story/{storyId}", h.storyQuiz)

		r.Get("/leaderboard", h.filteredLeaderboard)
		r.Get("/leaderboard/story/{id}", h.storyLeaderboard)
		r.Get("/leaderboard/overall", h.overallLeaderboard)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(cfg.JWTSecret, log))

			r.Post("/users", h.registerUser)
			r.Route("/users/{id}", func(r chi.Router) {
				r.Use(requireSelf("id", log))
				r.Get("/", h.getUser)
				r.Delete("/", h.deleteUser)
				r.Post("/complete-story", h.completeStory)
				r.Get("/progress", h.progress)
				r.Get("/topics/{topicId}/levels", h.levelStates)
			})
			r.Post("/leaderboard/submit", h.submitScore)
			r.Post("/quiz-progress", h.submitQuiz)
			r.With(requireSelf("userId", log)).Get("/quiz-progress/user/{userId}", h.quizSummary)
		})
	})
	return r
}

// requireSelf applies ensureSubject to a URL parameter.
func requireSelf(param string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ensureSubject(r, chi.URLParam(r, param)); err != nil {
				writeError(w, log, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
