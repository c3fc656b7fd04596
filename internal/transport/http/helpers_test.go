package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"safety-stories-service/internal/app"
	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/infra/memory"
)

func newTestServer(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	users := memory.NewUserStore()
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(sampleCatalog()), time.Minute)
	opts := app.Options{StoreTimeout: time.Second}
	leaderboard := app.NewLeaderboardService(memory.NewLeaderboardStore(), users, catalog, app.NewHub(), nil, 0, opts)
	quiz := app.NewQuizService(memory.NewQuizProgressStore(), users, catalog, leaderboard, nil, opts)
	svc := Services{
		Progression: app.NewProgressionService(users, catalog, nil, opts, leaderboard, quiz),
		Leaderboard: leaderboard,
		Quiz:        quiz,
		Content:     app.NewContentService(catalog, opts),
	}
	server := httptest.NewServer(NewRouter(svc, RouterConfig{JWTSecret: secret}, nil))
	t.Cleanup(server.Close)
	return server
}

func sampleCatalog() domain.CatalogData {
	story := func(id, levelID, title string) domain.Story {
		return domain.Story{
			ID:      id,
			LevelID: levelID,
			Title:   title,
			Scenes: []domain.Scene{
				{Title: "school", Options: []domain.Option{{Text: "Next", To: 1}}},
				{Title: "stranger", Options: []domain.Option{{Text: "Go with the man", To: 2}, {Text: "Take the bus", To: 3}}},
				{Title: "unsafe", Options: []domain.Option{{Text: "Try again", To: 1}}},
				{Title: "home", Options: []domain.Option{{Text: "End Story", To: 0}}},
			},
		}
	}
	return domain.CatalogData{
		Topics: []domain.Topic{{ID: "safety", Name: "Safety"}},
		Levels: []domain.Level{
			{ID: "level-1", TopicID: "safety", LevelNumber: 1},
			{ID: "level-2", TopicID: "safety", LevelNumber: 2, StarsRequiredToUnlock: 2},
		},
		Stories: []domain.Story{
			story("story-a", "level-1", "Stranger Danger"),
			story("story-b", "level-1", "Safe Secrets"),
			story("story-c", "level-2", "Road Safety"),
		},
		Quizzes: []domain.QuizQuestion{
			{ID: "q1", StoryID: "story-a", Question: "Who do you tell?", Options: []string{"Nobody", "Parents"}, CorrectAnswer: "Parents"},
		},
	}
}

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func (c apiClient) do(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	c.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var decoded interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	obj, _ := decoded.(map[string]interface{})
	if list, ok := decoded.([]interface{}); ok {
		obj = map[string]interface{}{"items": list}
	}
	return resp, obj
}

func errorKind(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	kind, _ := e["kind"].(string)
	return kind
}
