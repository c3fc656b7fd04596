package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteStoryFlow(t *testing.T) {
	api := apiClient{t: t, server: newTestServer(t, "")}

	resp, _ := api.do(http.MethodPost, "/users", map[string]string{"id": "u1", "username": "mia"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := api.do(http.MethodPost, "/users/u1/complete-story", map[string]interface{}{"storyId": "story-a"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["currentStars"])

	resp, _ = api.do(http.MethodPost, "/users/u1/complete-story", map[string]interface{}{"storyId": "story-b", "starsEarned": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = api.do(http.MethodGet, "/users/u1/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["currentStars"])
	assert.ElementsMatch(t, []interface{}{"level-1"}, body["completedLevels"])
	assert.ElementsMatch(t, []interface{}{"level-1", "level-2"}, body["unlockedLevels"])

	resp, body = api.do(http.MethodGet, "/users/u1/topics/safety/levels", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["items"], 2)
}

func TestErrorEnvelope(t *testing.T) {
	api := apiClient{t: t, server: newTestServer(t, "")}
	resp, _ := api.do(http.MethodPost, "/users", map[string]string{"id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		kind   string
	}{
		{"unknown story", http.MethodPost, "/users/u1/complete-story", map[string]string{"storyId": "nope"}, http.StatusNotFound, "NotFound"},
		{"unknown user", http.MethodGet, "/users/ghost/progress", nil, http.StatusNotFound, "NotFound"},
		{"locked level", http.MethodPost, "/users/u1/complete-story", map[string]string{"storyId": "story-c"}, http.StatusBadRequest, "ValidationError"},
		{"stars out of range", http.MethodPost, "/users/u1/complete-story", map[string]interface{}{"storyId": "story-a", "starsEarned": 101}, http.StatusBadRequest, "ValidationError"},
		{"unknown field", http.MethodPost, "/users/u1/complete-story", map[string]string{"storyId": "story-a", "stars": "3"}, http.StatusBadRequest, "ValidationError"},
		{"malformed body", http.MethodPost, "/users/u1/complete-story", "{", http.StatusBadRequest, "ValidationError"},
		{"trailing data", http.MethodPost, "/users/u1/complete-story", `{"storyId":"story-a"} {}`, http.StatusBadRequest, "ValidationError"},
		{"scene out of range", http.MethodGet, "/stories/story-a/scenes/9/options/0", nil, http.StatusBadRequest, "OutOfRange"},
		{"scene not a number", http.MethodGet, "/stories/story-a/scenes/x/options/0", nil, http.StatusBadRequest, "ValidationError"},
		{"unknown topic", http.MethodGet, "/topics/nope/levels", nil, http.StatusNotFound, "NotFound"},
		{"unknown story leaderboard", http.MethodGet, "/leaderboard/story/nope", nil, http.StatusNotFound, "NotFound"},
		{"story without quiz", http.MethodGet, "/quizzes/story/story-b", nil, http.StatusNotFound, "NotFound"},
		{"negative score", http.MethodPost, "/leaderboard/submit", map[string]interface{}{"userId": "u1", "story": "story-a", "topic": "safety", "level": "level-1", "score": -1}, http.StatusBadRequest, "ValidationError"},
		{"missing score", http.MethodPost, "/leaderboard/submit", map[string]interface{}{"userId": "u1", "story": "story-a", "topic": "safety", "level": "level-1"}, http.StatusBadRequest, "ValidationError"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := apiClient{t: t, server: api.server}
			resp, body := api.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.kind, errorKind(body))
		})
	}
}

func TestLeaderboardEndpoints(t *testing.T) {
	api := apiClient{t: t, server: newTestServer(t, "")}
	for _, id := range []string{"u1", "u2"} {
		resp, _ := api.do(http.MethodPost, "/users", map[string]string{"id": id, "username": "name-" + id})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	submit := func(user, story string, score int) {
		resp, _ := api.do(http.MethodPost, "/leaderboard/submit", map[string]interface{}{
			"userId": user, "story": story, "topic": "safety", "level": "level-1", "score": score,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	submit("u1", "story-a", 3)
	submit("u2", "story-a", 5)
	submit("u1", "story-b", 4)

	resp, body := api.do(http.MethodGet, "/leaderboard/story/story-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "u2", items[0].(map[string]interface{})["userId"])

	resp, body = api.do(http.MethodGet, "/leaderboard/story/story-c", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{}, body["items"])

	resp, body = api.do(http.MethodGet, "/leaderboard/overall", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items = body["items"].([]interface{})
	require.Len(t, items, 2)
	top := items[0].(map[string]interface{})
	assert.Equal(t, "u1", top["userId"])
	assert.Equal(t, "name-u1", top["username"])
	assert.EqualValues(t, 7, top["totalScore"])
	assert.EqualValues(t, 1, top["rank"])

	resp, body = api.do(http.MethodGet, "/leaderboard?story=story-b", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["items"], 1)
}

func TestContentEndpoints(t *testing.T) {
	api := apiClient{t: t, server: newTestServer(t, "")}

	resp, body := api.do(http.MethodGet, "/topics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["items"], 1)

	resp, body = api.do(http.MethodGet, "/levels/level-1/stories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["items"], 2)

	resp, body = api.do(http.MethodGet, "/stories/story-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "safety", body["topicId"])

	resp, body = api.do(http.MethodGet, "/stories/story-a/scenes/1/options/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["sceneIndex"])
	assert.Equal(t, "home", body["scene"].(map[string]interface{})["title"])

	resp, _ = api.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQuizEndpoints(t *testing.T) {
	api := apiClient{t: t, server: newTestServer(t, "")}
	resp, _ := api.do(http.MethodPost, "/users", map[string]string{"id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := api.do(http.MethodGet, "/quizzes/story/story-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	questions := body["items"].([]interface{})
	require.Len(t, questions, 1)
	assert.NotContains(t, questions[0].(map[string]interface{}), "correctAnswer")

	resp, body = api.do(http.MethodPost, "/quiz-progress", map[string]interface{}{
		"user":    "u1",
		"story":   "story-a",
		"answers": []map[string]string{{"quizId": "q1", "selectedAnswer": "Parents"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 1, body["score"])

	resp, body = api.do(http.MethodGet, "/quiz-progress/user/u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["currentStars"])
	assert.Equal(t, []interface{}{"story-a"}, body["completedStories"])

	resp, body = api.do(http.MethodPost, "/quiz-progress", map[string]interface{}{
		"user":    "u1",
		"story":   "story-a",
		"answers": []map[string]string{{"quizId": "q1", "selectedAnswer": "Maybe"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ValidationError", errorKind(body))
}

func TestAuthentication(t *testing.T) {
	const secret = "test-secret"
	server := newTestServer(t, secret)

	sign := func(sub string, exp time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}

	anonymous := apiClient{t: t, server: server}
	resp, body := anonymous.do(http.MethodPost, "/users", map[string]string{"id": "u1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", errorKind(body))

	expired := apiClient{t: t, server: server, token: sign("u1", time.Now().Add(-time.Minute))}
	resp, _ = expired.do(http.MethodPost, "/users", map[string]string{"id": "u1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	u1 := apiClient{t: t, server: server, token: sign("u1", time.Now().Add(time.Hour))}
	resp, _ = u1.do(http.MethodPost, "/users", map[string]string{"id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = u1.do(http.MethodPost, "/users", map[string]string{"id": "u2"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Forbidden", errorKind(body))

	resp, _ = u1.do(http.MethodGet, "/users/u2/progress", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = u1.do(http.MethodPost, "/users/u1/complete-story", map[string]string{"storyId": "story-a"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// public content needs no token
	resp, _ = anonymous.do(http.MethodGet, "/leaderboard/overall", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteUser(t *testing.T) {
	api := apiClient{t: t, server: newTestServer(t, "")}
	resp, _ := api.do(http.MethodPost, "/users", map[string]string{"id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = api.do(http.MethodPost, "/leaderboard/submit", map[string]interface{}{
		"userId": "u1", "story": "story-a", "topic": "safety", "level": "level-1", "score": 3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = api.do(http.MethodDelete, "/users/u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := api.do(http.MethodGet, "/users/u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NotFound", errorKind(body))

	resp, body = api.do(http.MethodGet, "/leaderboard/overall", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{}, body["items"])
}
