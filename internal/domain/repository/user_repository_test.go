package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgCreateUserRejectsDuplicateEmail(t *testing.T) {
	db := freshDB(t)
	users := NewPgUserRepository(db)
	ctx := context.Background()
	ada := createUser(t, users, "ada")

	err := users.Create(ctx, &model.User{ID: uuid.NewString(), Name: "Ada 2", Email: ada.Email, Role: model.RoleUser})
	assert.ErrorIs(t, err, common.ErrConflict)

	linked, err := users.LinkGoogleID(ctx, ada.ID, "google-1")
	require.NoError(t, err)
	assert.True(t, linked)
	linked, err = users.LinkGoogleID(ctx, ada.ID, "google-2")
	require.NoError(t, err)
	assert.False(t, linked)

	_, err = users.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPgApplyActivity(t *testing.T) {
	db := freshDB(t)
	users := NewPgUserRepository(db)
	ctx := context.Background()
	ada := createUser(t, users, "ada")

	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, xp := range []int{10, 20, 0} {
		_, err := users.ApplyActivity(ctx, model.ActivityEvent{
			UserID: ada.ID, Kind: model.ActivityProblemSolved, XP: xp, RefID: "p", OccurredAt: day.AddDate(0, 0, i),
		})
		require.NoError(t, err)
	}

	// Arrives late from the second day.
	user, err := users.ApplyActivity(ctx, model.ActivityEvent{
		UserID: ada.ID, Kind: model.ActivityReplyAdded, XP: 2, OccurredAt: day.AddDate(0, 0, 1).Add(11 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 32, user.XP)
	assert.Equal(t, 3, user.Streak)
	require.NotNil(t, user.LastActiveAt)
	assert.True(t, user.LastActiveAt.Equal(day.AddDate(0, 0, 2)))

	log, err := users.ActivityLog(ctx, ada.ID, 2)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.True(t, log[0].OccurredAt.Equal(day.AddDate(0, 0, 2)))
	assert.Equal(t, model.ActivityReplyAdded, log[1].Kind)

	_, err = users.ApplyActivity(ctx, model.ActivityEvent{UserID: uuid.NewString(), XP: 5})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPgConcurrentActivityAddsEveryEvent(t *testing.T) {
	db := freshDB(t)
	users := NewPgUserRepository(db)
	ctx := context.Background()
	ada := createUser(t, users, "ada")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := users.ApplyActivity(ctx, model.ActivityEvent{UserID: ada.ID, Kind: model.ActivityPostCreated, XP: 5, OccurredAt: now})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := users.FindByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, n*5, stored.XP)
	assert.Equal(t, 1, stored.Streak)

	top, err := users.TopByXP(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, ada.ID, top[0].ID)
}
