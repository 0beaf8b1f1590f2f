package service

import (
	"context"
	"strings"
	"testing"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleBookmarkTwiceRestores(t *testing.T) {
	f := newFixture(t, nil)
	user := f.register(t, "Ada", "ada@example.com")
	problem := f.seedProblem(t, "Two Sum", model.DifficultyEasy)
	ctx := context.Background()

	first, err := f.actions.ToggleBookmark(ctx, user.ID, problem.ID)
	require.NoError(t, err)
	assert.True(t, first.Bookmarked)
	assert.Equal(t, model.StatusTodo, first.Status)

	second, err := f.actions.ToggleBookmark(ctx, user.ID, problem.ID)
	require.NoError(t, err)
	assert.False(t, second.Bookmarked)

	progress, err := f.actions.GetProgress(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, progress, 1)
}

func TestSetStatusLastWriteWins(t *testing.T) {
	f := newFixture(t, nil)
	user := f.register(t, "Ada", "ada@example.com")
	problem := f.seedProblem(t, "Two Sum", model.DifficultyEasy)
	ctx := context.Background()

	for _, status := range []string{"SOLVED", "TODO", "ATTEMPTED"} {
		state, err := f.actions.SetStatus(ctx, user.ID, problem.ID, status)
		require.NoError(t, err)
		assert.Equal(t, model.ProblemStatus(status), state.Status)
	}

	progress, err := f.actions.GetProgress(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, model.StatusAttempted, progress[0].Status)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, nil)
	user := f.register(t, "Ada", "ada@example.com")
	problem := f.seedProblem(t, "Two Sum", model.DifficultyEasy)

	_, err := f.actions.SetStatus(context.Background(), user.ID, problem.ID, "DONE")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSetStatusUnknownProblem(t *testing.T) {
	f := newFixture(t, nil)
	user := f.register(t, "Ada", "ada@example.com")

	_, err := f.actions.SetStatus(context.Background(), user.ID, uuid.NewString(), "SOLVED")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSolvingAwardsDifficultyXPOnce(t *testing.T) {
	f := newFixture(t, nil)
	user := f.register(t, "Ada", "ada@example.com")
	problem := f.seedProblem(t, "LRU Cache", model.DifficultyHard)
	ctx := context.Background()

	_, err := f.actions.SetStatus(ctx, user.ID, problem.ID, "SOLVED")
	require.NoError(t, err)
	_, err = f.actions.SetStatus(ctx, user.ID, problem.ID, "SOLVED")
	require.NoError(t, err)

	solved := f.recorder.EventsOf(model.ActivityProblemSolved)
	require.Len(t, solved, 1)
	assert.Equal(t, 40, solved[0].XP)
	assert.Equal(t, problem.ID, solved[0].RefID)

	// Leaving and re-entering SOLVED is a new transition.
	_, err = f.actions.SetStatus(ctx, user.ID, problem.ID, "ATTEMPTED")
	require.NoError(t, err)
	_, err = f.actions.SetStatus(ctx, user.ID, problem.ID, "SOLVED")
	require.NoError(t, err)
	assert.Len(t, f.recorder.EventsOf(model.ActivityProblemSolved), 2)
}

func TestUpdateNotes(t *testing.T) {
	f := newFixture(t, nil)
	user := f.register(t, "Ada", "ada@example.com")
	problem := f.seedProblem(t, "Two Sum", model.DifficultyEasy)
	ctx := context.Background()

	state, err := f.actions.UpdateNotes(ctx, user.ID, problem.ID, "use a hash map")
	require.NoError(t, err)
	assert.Equal(t, "use a hash map", state.Notes)
	assert.False(t, state.Bookmarked)

	_, err = f.actions.UpdateNotes(ctx, user.ID, problem.ID, strings.Repeat("é", model.MaxNotesLength))
	assert.NoError(t, err)

	_, err = f.actions.UpdateNotes(ctx, user.ID, problem.ID, strings.Repeat("x", model.MaxNotesLength+1))
	assert.ErrorIs(t, err, common.ErrValidation)
}
