package repository

import (
	"context"
	"sync"
	"testing"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgSetStatusReportsPrevious(t *testing.T) {
	db := freshDB(t)
	users, content, progress := NewPgUserRepository(db), NewPgContentRepository(db), NewPgProgressRepository(db)
	ctx := context.Background()
	ada := createUser(t, users, "ada")
	problem := createProblem(t, content, "Two Sum")

	state, prev, err := progress.SetStatus(ctx, ada.ID, problem.ID, model.StatusAttempted)
	require.NoError(t, err)
	assert.Equal(t, model.ProblemStatus(""), prev)
	assert.Equal(t, model.StatusAttempted, state.Status)

	state, prev, err = progress.SetStatus(ctx, ada.ID, problem.ID, model.StatusSolved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAttempted, prev)
	assert.Equal(t, model.StatusSolved, state.Status)

	_, prev, err = progress.SetStatus(ctx, ada.ID, problem.ID, model.StatusTodo)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSolved, prev)

	_, _, err = progress.SetStatus(ctx, ada.ID, uuid.NewString(), model.StatusSolved)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, _, err = progress.SetStatus(ctx, ada.ID, "not-a-uuid", model.StatusSolved)
	assert.ErrorIs(t, err, common.ErrNotFound)

	states, err := progress.ListByUser(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, model.StatusTodo, states[0].Status)
}

func TestPgConcurrentSolveReportsOneTransition(t *testing.T) {
	db := freshDB(t)
	users, content, progress := NewPgUserRepository(db), NewPgContentRepository(db), NewPgProgressRepository(db)
	ctx := context.Background()
	ada := createUser(t, users, "ada")
	problem := createProblem(t, content, "Two Sum")

	const n = 8
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
		failures    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, prev, err := progress.SetStatus(ctx, ada.ID, problem.ID, model.StatusSolved)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			if prev != model.StatusSolved {
				transitions++
			}
		}()
	}
	wg.Wait()
	require.Empty(t, failures)
	assert.Equal(t, 1, transitions)

	solved, err := progress.SolvedProblemIDs(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{problem.ID}, solved)
}

func TestPgBookmarkAndNotes(t *testing.T) {
	db := freshDB(t)
	users, content, progress := NewPgUserRepository(db), NewPgContentRepository(db), NewPgProgressRepository(db)
	ctx := context.Background()
	ada := createUser(t, users, "ada")
	problem := createProblem(t, content, "Two Sum")

	state, err := progress.ToggleBookmark(ctx, ada.ID, problem.ID)
	require.NoError(t, err)
	assert.True(t, state.Bookmarked)
	assert.Equal(t, model.StatusTodo, state.Status)

	state, err = progress.ToggleBookmark(ctx, ada.ID, problem.ID)
	require.NoError(t, err)
	assert.False(t, state.Bookmarked)

	_, _, err = progress.SetStatus(ctx, ada.ID, problem.ID, model.StatusAttempted)
	require.NoError(t, err)
	state, err = progress.UpdateNotes(ctx, ada.ID, problem.ID, "use a hash map")
	require.NoError(t, err)
	assert.Equal(t, "use a hash map", state.Notes)
	assert.Equal(t, model.StatusAttempted, state.Status)

	_, err = progress.ToggleBookmark(ctx, ada.ID, uuid.NewString())
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = progress.UpdateNotes(ctx, ada.ID, uuid.NewString(), "x")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
