package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"algoforge/internal/api"
	"algoforge/internal/app/service"
	"algoforge/internal/common/security"
	"algoforge/internal/domain/model"
	"algoforge/internal/platform/logger"
	"algoforge/internal/platform/markdown"
	"algoforge/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*Client, *testutil.Store) {
	t.Helper()
	security.InitJWT([]byte("client-test-secret"))

	log := logger.Nop()
	store := testutil.NewStore()
	board := testutil.NewBoard()
	recorder := &testutil.Recorder{Store: store, Board: board}
	router := api.NewRouter(
		api.RouterConfig{},
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
	return New(srv.URL+"/", srv.Client()), store
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	_, err := c.Login(ctx, service.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid email or password", apiErr.Message)

	_, err = c.Me(ctx, "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClientEndToEnd(t *testing.T) {
	c, store := newClient(t)
	ctx := context.Background()

	admin, err := c.Register(ctx, service.RegisterRequest{Name: "Admin", Email: "admin@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateRole(ctx, admin.ID, model.RoleAdmin))
	adminCred := Credential(admin.Token)

	path, err := c.CreatePath(ctx, adminCred, service.PathInput{Title: "Graphs"})
	require.NoError(t, err)
	topic, err := c.CreateTopic(ctx, adminCred, service.TopicInput{PathID: path.ID, Title: "BFS"})
	require.NoError(t, err)
	problem, err := c.CreateProblem(ctx, adminCred, service.ProblemInput{
		TopicID: topic.ID, Title: "Rotting Oranges", Difficulty: model.DifficultyMedium,
	})
	require.NoError(t, err)

	paths, err := c.Paths(ctx)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	problems, err := c.Problems(ctx, topic.ID)
	require.NoError(t, err)
	require.Len(t, problems, 1)

	user, err := c.Register(ctx, service.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret123"})
	require.NoError(t, err)
	cred := Credential(user.Token)

	state, err := c.SetStatus(ctx, cred, problem.ID, model.StatusSolved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSolved, state.Status)

	me, err := c.Me(ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, 20, me.XP)
	assert.Equal(t, []string{problem.ID}, me.SolvedProblems)

	post, err := c.CreatePost(ctx, cred, service.CreatePostRequest{Title: "BFS tip", Content: "use a deque", Category: "tips"})
	require.NoError(t, err)
	_, err = c.AddReply(ctx, adminCred, post.ID, "nice")
	require.NoError(t, err)
	like, err := c.TogglePostLike(ctx, adminCred, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, like.Likes)

	page, err := c.ListPosts(ctx, ListPostsOptions{Category: "tips", Sort: model.SortActive})
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, 1, page.Posts[0].ReplyCount)

	board, err := c.Leaderboard(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, board)
	assert.Equal(t, user.ID, board[0].UserID)

	stats, err := c.AdminStats(ctx, adminCred)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Users: 2, Paths: 1, Topics: 1, Problems: 1, Posts: 1}, *stats)

	rebuilt, err := c.RebuildLeaderboard(ctx, adminCred)
	require.NoError(t, err)
	assert.Equal(t, 2, rebuilt)

	_, err = c.AdminStats(ctx, cred)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	require.NoError(t, c.DeleteProblem(ctx, adminCred, problem.ID))
	_, err = c.Topic(ctx, "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
