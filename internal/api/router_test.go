package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"algoforge/internal/app/service"
	"algoforge/internal/common/security"
	"algoforge/internal/domain/model"
	"algoforge/internal/platform/logger"
	"algoforge/internal/platform/markdown"
	"algoforge/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	store *testutil.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	security.InitJWT([]byte("router-test-secret"))

	log := logger.Nop()
	store := testutil.NewStore()
	board := testutil.NewBoard()
	recorder := &testutil.Recorder{Store: store, Board: board}

	router := NewRouter(
		RouterConfig{},
		log,
		service.NewAuthService(store, store, nil, recorder, log),
		service.NewContentService(store, testutil.NewCache(), log),
		service.NewUserActionService(store, store, recorder, log),
		service.NewForumService(store, store, markdown.NewRenderer(), recorder, log),
		service.NewLeaderboardService(board, store, log),
		service.NewAdminService(store, store, log),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store}
}

// call sends body as JSON and decodes the response into out when non-nil.
func (s *testServer) call(t *testing.T, method, path, token string, body, out interface{}) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) register(t *testing.T, name, email string) service.AuthResponse {
	t.Helper()
	var resp service.AuthResponse
	status := s.call(t, http.MethodPost, "/api/users", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	return resp
}

func (s *testServer) makeAdmin(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, s.store.UpdateRole(context.Background(), userID, model.RoleAdmin))
}

type errorBody struct {
	Message string `json:"message"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/health", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)
	registered := s.register(t, "Ada", "ada@example.com")
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, model.RoleUser, registered.Role)

	var errResp errorBody
	status := s.call(t, http.MethodPost, "/api/users", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "secret123",
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, errResp.Message)

	var login service.AuthResponse
	status = s.call(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ada@example.com", "password": "secret123",
	}, &login)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, registered.ID, login.ID)

	status = s.call(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ada@example.com", "password": "nope-nope",
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid email or password", errResp.Message)

	var me map[string]interface{}
	status = s.call(t, http.MethodGet, "/api/users/me", login.Token, nil, &me)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada@example.com", me["email"])
	assert.NotContains(t, me, "passwordHash")
	assert.NotContains(t, me, "HashedPassword")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	var errResp errorBody
	assert.Equal(t, http.StatusUnauthorized, s.call(t, http.MethodGet, "/api/users/me", "", nil, &errResp))
	assert.NotEmpty(t, errResp.Message)

	assert.Equal(t, http.StatusUnauthorized, s.call(t, http.MethodGet, "/api/user-actions/progress", "garbage", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.call(t, http.MethodPost, "/api/forum", "", map[string]string{"title": "x"}, nil))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "Ada", "ada@example.com")

	var errResp errorBody
	status := s.call(t, http.MethodGet, "/api/admin/stats", user.Token, nil, &errResp)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", errResp.Message)

	s.makeAdmin(t, user.ID)
	var stats model.Stats
	status = s.call(t, http.MethodGet, "/api/admin/stats", user.Token, nil, &stats)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, stats.Users)

	var rebuilt map[string]int
	status = s.call(t, http.MethodPost, "/api/admin/leaderboard/rebuild", user.Token, nil, &rebuilt)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]int{"users": 1}, rebuilt)
}

func TestContentAndProgressFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "Admin", "admin@example.com")
	s.makeAdmin(t, admin.ID)
	learner := s.register(t, "Ada", "ada@example.com")

	var path model.LearningPath
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/admin/paths", admin.Token,
		service.PathInput{Title: "Arrays & Hashing"}, &path))
	assert.Equal(t, "arrays-and-hashing", path.Slug)

	var topic model.Topic
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/admin/topics", admin.Token,
		service.TopicInput{PathID: path.ID, Title: "Basics"}, &topic))

	var problem model.Problem
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/admin/problems", admin.Token,
		service.ProblemInput{TopicID: topic.ID, Title: "Two Sum", Difficulty: model.DifficultyEasy}, &problem))

	var topics []model.Topic
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/content/paths/"+path.ID+"/topics", "", nil, &topics))
	require.Len(t, topics, 1)
	assert.Equal(t, 1, topics[0].ProblemCount)

	var state model.UserProblemState
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/user-actions/problems/"+problem.ID+"/status",
		learner.Token, service.SetStatusRequest{Status: "SOLVED"}, &state))
	assert.Equal(t, model.StatusSolved, state.Status)

	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/user-actions/problems/"+problem.ID+"/bookmark",
		learner.Token, nil, &state))
	assert.True(t, state.Bookmarked)

	require.Equal(t, http.StatusOK, s.call(t, http.MethodPut, "/api/user-actions/problems/"+problem.ID+"/notes",
		learner.Token, service.UpdateNotesRequest{Notes: "hash map"}, &state))
	assert.Equal(t, "hash map", state.Notes)
	assert.Equal(t, model.StatusSolved, state.Status)

	var progress []model.UserProblemState
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/user-actions/progress", learner.Token, nil, &progress))
	require.Len(t, progress, 1)

	var errResp errorBody
	assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodPost, "/api/user-actions/problems/"+problem.ID+"/status",
		learner.Token, service.SetStatusRequest{Status: "DONE"}, &errResp))

	var board []model.LeaderboardEntry
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/leaderboard", "", nil, &board))
	require.Len(t, board, 1)
	assert.Equal(t, learner.ID, board[0].UserID)
	assert.Equal(t, 10, board[0].XP)

	var missing errorBody
	assert.Equal(t, http.StatusNotFound, s.call(t, http.MethodGet, "/api/content/topics/does-not-exist", "", nil, &missing))
}

func TestForumFlow(t *testing.T) {
	s := newTestServer(t)
	ada := s.register(t, "Ada", "ada@example.com")
	bob := s.register(t, "Bob", "bob@example.com")

	var post model.Post
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/forum", ada.Token, service.CreatePostRequest{
		Title: "Sliding window", Content: "How do I *shrink*?", Category: "help", Tags: []string{"Arrays"},
	}, &post))
	assert.Contains(t, post.ContentHTML, "<em>shrink</em>")

	var withReply model.Post
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/forum/"+post.ID+"/reply", bob.Token,
		service.AddReplyRequest{Content: "move the left pointer"}, &withReply))
	require.Len(t, withReply.Replies, 1)
	assert.Equal(t, "Bob", withReply.Replies[0].Author.Name)

	var like model.LikeResult
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/forum/"+post.ID+"/like", bob.Token, nil, &like))
	assert.Equal(t, model.LikeResult{Liked: true, Likes: 1}, like)

	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost,
		"/api/forum/"+post.ID+"/replies/"+withReply.Replies[0].ID+"/like", ada.Token, nil, &like))
	assert.True(t, like.Liked)

	var page model.PostPage
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/forum?category=help&sort=popular&page=1", "", nil, &page))
	require.Len(t, page.Posts, 1)
	assert.Equal(t, 1, page.Posts[0].LikeCount)
	assert.Equal(t, 1, page.Posts[0].ReplyCount)
	assert.Equal(t, 1, page.TotalPages)

	var far model.PostPage
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/forum?page=9223372036854775807", "", nil, &far))
	assert.Equal(t, model.MaxForumPage, far.CurrentPage)
	assert.Empty(t, far.Posts)

	var fetched model.Post
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/forum/"+post.ID, "", nil, &fetched))
	assert.Equal(t, []string{"arrays"}, fetched.Tags)

	s.makeAdmin(t, ada.ID)
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPut, "/api/admin/forum/"+post.ID+"/pin", ada.Token,
		service.SetPinnedRequest{Pinned: true}, &fetched))
	assert.True(t, fetched.Pinned)
}
