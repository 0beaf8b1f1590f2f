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

func createPost(t *testing.T, forum ForumRepository, author *model.User, title, category string) *model.Post {
	t.Helper()
	post := &model.Post{
		ID: uuid.NewString(), Title: title, Content: "body", Category: category,
		Tags: []string{"arrays"}, Author: model.Author{ID: author.ID, Name: author.Name},
	}
	require.NoError(t, forum.CreatePost(context.Background(), post))
	return post
}

func TestPgTogglePostLike(t *testing.T) {
	db := freshDB(t)
	users, forum := NewPgUserRepository(db), NewPgForumRepository(db)
	ctx := context.Background()
	ada, bob := createUser(t, users, "ada"), createUser(t, users, "bob")
	post := createPost(t, forum, ada, "two pointers", "help")

	res, err := forum.TogglePostLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LikeResult{Liked: true, Likes: 1}, *res)

	res, err = forum.TogglePostLike(ctx, post.ID, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LikeResult{Liked: true, Likes: 2}, *res)

	res, err = forum.TogglePostLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LikeResult{Liked: false, Likes: 1}, *res)

	stored, err := forum.FindPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ada.ID}, stored.Likes)
	assert.Equal(t, 1, stored.LikeCount)
	assert.Equal(t, []string{"arrays"}, stored.Tags)

	_, err = forum.TogglePostLike(ctx, uuid.NewString(), bob.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = forum.TogglePostLike(ctx, "not-a-uuid", bob.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPgConcurrentLikesKeepOneRowPerUser(t *testing.T) {
	db := freshDB(t)
	users, forum := NewPgUserRepository(db), NewPgForumRepository(db)
	ctx := context.Background()
	author := createUser(t, users, "author")
	post := createPost(t, forum, author, "hot take", "general")

	const n = 12
	likers := make([]*model.User, n)
	for i := range likers {
		likers[i] = createUser(t, users, uuid.NewString()[:8])
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, u := range likers {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if _, err := forum.TogglePostLike(ctx, post.ID, userID); err != nil {
				errs <- err
			}
		}(u.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := forum.FindPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.LikeCount)
	assert.Len(t, stored.Likes, n)
}

func TestPgRepliesKeepInsertionOrder(t *testing.T) {
	db := freshDB(t)
	users, forum := NewPgUserRepository(db), NewPgForumRepository(db)
	ctx := context.Background()
	ada, bob := createUser(t, users, "ada"), createUser(t, users, "bob")
	post := createPost(t, forum, ada, "graphs", "help")
	other := createPost(t, forum, ada, "trees", "help")

	contents := []string{"first", "second", "third"}
	var replyIDs []string
	for i, c := range contents {
		author := ada
		if i%2 == 1 {
			author = bob
		}
		reply := &model.Reply{ID: uuid.NewString(), PostID: post.ID, Author: model.Author{ID: author.ID}, Content: c}
		require.NoError(t, forum.AddReply(ctx, reply))
		replyIDs = append(replyIDs, reply.ID)
	}

	stored, err := forum.FindPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, stored.Replies, 3)
	assert.Equal(t, 3, stored.ReplyCount)
	for i, r := range stored.Replies {
		assert.Equal(t, contents[i], r.Content)
	}
	assert.Equal(t, "bob", stored.Replies[1].Author.Name)

	res, err := forum.ToggleReplyLike(ctx, post.ID, replyIDs[0], bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LikeResult{Liked: true, Likes: 1}, *res)
	res, err = forum.ToggleReplyLike(ctx, post.ID, replyIDs[0], bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LikeResult{Liked: false, Likes: 0}, *res)

	_, err = forum.ToggleReplyLike(ctx, other.ID, replyIDs[0], bob.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = forum.AddReply(ctx, &model.Reply{ID: uuid.NewString(), PostID: uuid.NewString(), Author: model.Author{ID: ada.ID}, Content: "x"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPgListPostsOrderAndPaging(t *testing.T) {
	db := freshDB(t)
	users, forum := NewPgUserRepository(db), NewPgForumRepository(db)
	ctx := context.Background()
	ada, bob := createUser(t, users, "ada"), createUser(t, users, "bob")

	first := createPost(t, forum, ada, "first", "help")
	second := createPost(t, forum, ada, "second", "general")
	third := createPost(t, forum, ada, "third", "help")
	_, err := forum.TogglePostLike(ctx, first.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, forum.SetPinned(ctx, second.ID, true))

	latest, total, err := forum.ListPosts(ctx, "", model.SortLatest, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, latest, 3)
	assert.Equal(t, []string{second.ID, third.ID, first.ID}, []string{latest[0].ID, latest[1].ID, latest[2].ID})

	popular, _, err := forum.ListPosts(ctx, "", model.SortPopular, 1, 0)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, first.ID, popular[0].ID)

	help, total, err := forum.ListPosts(ctx, "help", model.SortOldest, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, help, 1)
	assert.Equal(t, third.ID, help[0].ID)

	none, total, err := forum.ListPosts(ctx, "", model.SortLatest, 20, model.MaxForumPage*model.ForumPageSize)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, none)

	assert.ErrorIs(t, forum.SetPinned(ctx, uuid.NewString(), true), common.ErrNotFound)
}
