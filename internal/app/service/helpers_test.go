package service

import (
	"context"
	"testing"

	"algoforge/internal/common/security"
	"algoforge/internal/domain/model"
	"algoforge/internal/platform/logger"
	"algoforge/internal/platform/markdown"
	"algoforge/internal/testutil"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *testutil.Store
	recorder *testutil.Recorder
	board    *testutil.Board
	cache    *testutil.Cache

	auth        *AuthService
	content     *ContentService
	actions     *UserActionService
	forum       *ForumService
	leaderboard *LeaderboardService
	admin       *AdminService
}

func newFixture(t *testing.T, verifier security.IdentityVerifier) *fixture {
	t.Helper()
	security.InitJWT([]byte("service-test-secret"))

	log := logger.Nop()
	store := testutil.NewStore()
	board := testutil.NewBoard()
	recorder := &testutil.Recorder{Store: store, Board: board}
	cache := testutil.NewCache()

	return &fixture{
		store:       store,
		recorder:    recorder,
		board:       board,
		cache:       cache,
		auth:        NewAuthService(store, store, verifier, recorder, log),
		content:     NewContentService(store, cache, log),
		actions:     NewUserActionService(store, store, recorder, log),
		forum:       NewForumService(store, store, markdown.NewRenderer(), recorder, log),
		leaderboard: NewLeaderboardService(board, store, log),
		admin:       NewAdminService(store, store, log),
	}
}

func (f *fixture) register(t *testing.T, name, email string) *AuthResponse {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), RegisterRequest{Name: name, Email: email, Password: "secret123"})
	require.NoError(t, err)
	return resp
}

// seedProblem creates a path, a topic and one problem of the given difficulty.
func (f *fixture) seedProblem(t *testing.T, title string, difficulty model.Difficulty) *model.Problem {
	t.Helper()
	ctx := context.Background()
	path, err := f.content.CreatePath(ctx, PathInput{Title: "Path for " + title})
	require.NoError(t, err)
	topic, err := f.content.CreateTopic(ctx, TopicInput{PathID: path.ID, Title: "Topic for " + title})
	require.NoError(t, err)
	problem, err := f.content.CreateProblem(ctx, ProblemInput{TopicID: topic.ID, Title: title, Difficulty: difficulty})
	require.NoError(t, err)
	return problem
}
