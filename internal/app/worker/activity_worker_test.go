package worker

import (
	"context"
	"testing"
	"time"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"
	"algoforge/internal/platform/logger"
	"algoforge/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUpdatesUserAndBoard(t *testing.T) {
	store := testutil.NewStore()
	board := testutil.NewBoard()
	ctx := context.Background()

	user := &model.User{ID: uuid.NewString(), Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, store.Create(ctx, user))

	w := NewActivityWorker(nil, "q", time.Second, store, board, logger.Nop())

	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.Apply(ctx, model.ActivityEvent{UserID: user.ID, Kind: model.ActivityProblemSolved, XP: 20, OccurredAt: day}))
	require.NoError(t, w.Apply(ctx, model.ActivityEvent{UserID: user.ID, Kind: model.ActivityPostCreated, XP: 5, OccurredAt: day.Add(time.Hour)}))
	require.NoError(t, w.Apply(ctx, model.ActivityEvent{UserID: user.ID, Kind: model.ActivityLogin, OccurredAt: day.AddDate(0, 0, 1)}))

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, stored.XP)
	assert.Equal(t, 2, stored.Streak)

	top, err := board.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 25, top[0].XP)

	log, err := store.ActivityLog(ctx, user.ID, model.ActivityLogLimit)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, model.ActivityLogin, log[0].Kind)
}

func TestApplyUnknownUser(t *testing.T) {
	board := testutil.NewBoard()
	w := NewActivityWorker(nil, "q", time.Second, testutil.NewStore(), board, logger.Nop())

	err := w.Apply(context.Background(), model.ActivityEvent{UserID: uuid.NewString(), XP: 10})
	assert.ErrorIs(t, err, common.ErrNotFound)

	top, err := board.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

// cancelAware fails ApplyActivity once its context is done, like a pgx transaction.
type cancelAware struct {
	*testutil.Store
}

func (c cancelAware) ApplyActivity(ctx context.Context, event model.ActivityEvent) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Store.ApplyActivity(ctx, event)
}

func TestPoppedEventSurvivesWorkerCancel(t *testing.T) {
	store := testutil.NewStore()
	user := &model.User{ID: uuid.NewString(), Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, store.Create(context.Background(), user))
	w := NewActivityWorker(nil, "q", time.Second, cancelAware{store}, testutil.NewBoard(), logger.Nop())

	workerCtx, stop := context.WithCancel(context.Background())
	stop()
	event := model.ActivityEvent{UserID: user.ID, Kind: model.ActivityPostCreated, XP: 5, OccurredAt: time.Now().UTC()}
	assert.ErrorIs(t, w.Apply(workerCtx, event), context.Canceled)

	jobCtx, cancel := detach(workerCtx)
	defer cancel()
	_, hasDeadline := jobCtx.Deadline()
	assert.True(t, hasDeadline)
	require.NoError(t, w.Apply(jobCtx, event))

	stored, err := store.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.XP)
}

func TestLateEventKeepsStreak(t *testing.T) {
	store := testutil.NewStore()
	ctx := context.Background()
	user := &model.User{ID: uuid.NewString(), Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, store.Create(ctx, user))
	w := NewActivityWorker(nil, "q", time.Second, store, nil, logger.Nop())

	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Apply(ctx, model.ActivityEvent{UserID: user.ID, Kind: model.ActivityLogin, OccurredAt: day.AddDate(0, 0, i)}))
	}
	// Requeued from the day before the last one.
	require.NoError(t, w.Apply(ctx, model.ActivityEvent{UserID: user.ID, Kind: model.ActivityReplyAdded, XP: 2, OccurredAt: day.AddDate(0, 0, 1).Add(11 * time.Hour)}))

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Streak)
	assert.Equal(t, 2, stored.XP)
}
