// Package testutil provides in-memory stand-ins for the Postgres repositories
// and the Redis-backed collaborators. They follow the same contracts: unique
// emails and slugs, one progress row per (user, problem), atomic toggles and
// NotFound for dangling references.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"
)

// Store implements repository.UserRepository, ContentRepository,
// ProgressRepository and ForumRepository behind one mutex.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	users    map[string]*model.User
	activity map[string][]model.ActivityEntry

	paths    map[string]*model.LearningPath
	topics   map[string]*model.Topic
	problems map[string]*model.Problem

	states map[stateKey]*model.UserProblemState

	posts      map[string]*model.Post
	postSeq    map[string]int
	seq        int
	replies    map[string][]*model.Reply
	postLikes  map[string]map[string]bool
	replyLikes map[string]map[string]bool
}

type stateKey struct{ user, problem string }

func NewStore() *Store {
	return &Store{
		now:        func() time.Time { return time.Now().UTC() },
		users:      map[string]*model.User{},
		activity:   map[string][]model.ActivityEntry{},
		paths:      map[string]*model.LearningPath{},
		topics:     map[string]*model.Topic{},
		problems:   map[string]*model.Problem{},
		states:     map[stateKey]*model.UserProblemState{},
		posts:      map[string]*model.Post{},
		postSeq:    map[string]int{},
		replies:    map[string][]*model.Reply{},
		postLikes:  map[string]map[string]bool{},
		replyLikes: map[string]map[string]bool{},
	}
}

// tick returns strictly increasing timestamps so ordering by time is stable.
func (s *Store) tick() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq) * time.Microsecond)
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, common.ErrNotFound)
}

// ----- users -----

func (s *Store) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("email already registered: %w", common.ErrConflict)
		}
		if user.GoogleID != "" && u.GoogleID == user.GoogleID {
			return fmt.Errorf("google account already linked: %w", common.ErrConflict)
		}
	}
	now := s.tick()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFound("user")
}

func (s *Store) FindByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user")
	}
	cp := *u
	return &cp, nil
}

func (s *Store) FindByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *Store) sortedUsers() []model.User {
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) List(ctx context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedUsers(), nil
}

func (s *Store) TopByXP(ctx context.Context, limit int) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedUsers()
	out := []model.User{}
	for _, u := range all {
		if u.XP > 0 {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].XP > out[j].XP })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LinkGoogleID(ctx context.Context, userID, googleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.GoogleID != "" {
		return false, nil
	}
	for _, other := range s.users {
		if other.GoogleID == googleID {
			return false, fmt.Errorf("google account already linked to another user: %w", common.ErrConflict)
		}
	}
	u.GoogleID = googleID
	u.UpdatedAt = s.tick()
	return true, nil
}

func (s *Store) UpdateRole(ctx context.Context, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return notFound("user")
	}
	u.Role = role
	return nil
}

func (s *Store) ApplyActivity(ctx context.Context, event model.ActivityEvent) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[event.UserID]
	if !ok {
		return nil, notFound("user")
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	u.Streak = model.NextStreak(u.LastActiveAt, u.Streak, occurred)
	u.XP += event.XP
	if u.LastActiveAt == nil || occurred.After(*u.LastActiveAt) {
		t := occurred
		u.LastActiveAt = &t
	}
	s.activity[u.ID] = append(s.activity[u.ID], model.ActivityEntry{
		Kind: event.Kind, XP: event.XP, RefID: event.RefID, OccurredAt: occurred,
	})
	cp := *u
	return &cp, nil
}

func (s *Store) ActivityLog(ctx context.Context, userID string, limit int) ([]model.ActivityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.activity[userID]
	out := []model.ActivityEntry{}
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

// ----- content -----

func (s *Store) pathSlugTaken(slug, exceptID string) bool {
	for _, p := range s.paths {
		if p.Slug == slug && p.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) topicSlugTaken(slug, exceptID string) bool {
	for _, t := range s.topics {
		if t.Slug == slug && t.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) problemSlugTaken(slug, exceptID string) bool {
	for _, p := range s.problems {
		if p.Slug == slug && p.ID != exceptID {
			return true
		}
	}
	return false
}

func conflict(what string) error {
	return fmt.Errorf("%s with this slug already exists: %w", what, common.ErrConflict)
}

func (s *Store) ListPaths(ctx context.Context) ([]model.LearningPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.LearningPath{}
	for _, p := range s.paths {
		out = append(out, *p)
	}
	model.SortPaths(out)
	return out, nil
}

func (s *Store) FindPathByID(ctx context.Context, id string) (*model.LearningPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[id]
	if !ok {
		return nil, notFound("learning path")
	}
	cp := *p
	return &cp, nil
}

func (s *Store) CreatePath(ctx context.Context, p *model.LearningPath) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pathSlugTaken(p.Slug, p.ID) {
		return conflict("learning path")
	}
	now := s.tick()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.paths[p.ID] = &cp
	return nil
}

func (s *Store) UpdatePath(ctx context.Context, p *model.LearningPath) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[p.ID]; !ok {
		return notFound("learning path")
	}
	if s.pathSlugTaken(p.Slug, p.ID) {
		return conflict("learning path")
	}
	p.UpdatedAt = s.tick()
	cp := *p
	s.paths[p.ID] = &cp
	return nil
}

func (s *Store) DeletePath(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[id]; !ok {
		return notFound("learning path")
	}
	delete(s.paths, id)
	for tid, t := range s.topics {
		if t.PathID == id {
			s.deleteTopicLocked(tid)
		}
	}
	return nil
}

func (s *Store) UpsertPathBySlug(ctx context.Context, p *model.LearningPath) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.paths {
		if existing.Slug == p.Slug {
			p.ID, p.CreatedAt = existing.ID, existing.CreatedAt
			break
		}
	}
	p.UpdatedAt = s.tick()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	cp := *p
	s.paths[p.ID] = &cp
	return nil
}

func (s *Store) ListTopics(ctx context.Context, pathID string) ([]model.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Topic{}
	for _, t := range s.topics {
		if t.PathID == pathID {
			out = append(out, *t)
		}
	}
	model.SortTopics(out)
	return out, nil
}

func (s *Store) ListAllTopics(ctx context.Context) ([]model.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Topic{}
	for _, t := range s.topics {
		out = append(out, *t)
	}
	model.SortTopics(out)
	return out, nil
}

func (s *Store) FindTopicByID(ctx context.Context, id string) (*model.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[id]
	if !ok {
		return nil, notFound("topic")
	}
	cp := *t
	return &cp, nil
}

func (s *Store) CreateTopic(ctx context.Context, t *model.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[t.PathID]; !ok {
		return notFound("topic parent")
	}
	if s.topicSlugTaken(t.Slug, t.ID) {
		return conflict("topic")
	}
	now := s.tick()
	t.CreatedAt, t.UpdatedAt, t.ProblemCount = now, now, 0
	cp := *t
	s.topics[t.ID] = &cp
	return nil
}

func (s *Store) UpdateTopic(ctx context.Context, t *model.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.topics[t.ID]
	if !ok {
		return notFound("topic")
	}
	if _, ok := s.paths[t.PathID]; !ok {
		return notFound("topic parent")
	}
	if s.topicSlugTaken(t.Slug, t.ID) {
		return conflict("topic")
	}
	t.ProblemCount = existing.ProblemCount
	t.UpdatedAt = s.tick()
	cp := *t
	s.topics[t.ID] = &cp
	return nil
}

func (s *Store) deleteTopicLocked(id string) {
	delete(s.topics, id)
	for pid, p := range s.problems {
		if p.TopicID == id {
			s.deleteProblemLocked(pid)
		}
	}
}

func (s *Store) DeleteTopic(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[id]; !ok {
		return notFound("topic")
	}
	s.deleteTopicLocked(id)
	return nil
}

func (s *Store) UpsertTopicBySlug(ctx context.Context, t *model.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[t.PathID]; !ok {
		return notFound("topic parent")
	}
	for _, existing := range s.topics {
		if existing.Slug == t.Slug {
			t.ID, t.CreatedAt, t.ProblemCount = existing.ID, existing.CreatedAt, existing.ProblemCount
			break
		}
	}
	t.UpdatedAt = s.tick()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = t.UpdatedAt
	}
	cp := *t
	s.topics[t.ID] = &cp
	return nil
}

func copyProblem(p *model.Problem) model.Problem {
	cp := *p
	cp.Tags = append([]string{}, p.Tags...)
	return cp
}

func (s *Store) ListProblems(ctx context.Context, topicID string) ([]model.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Problem{}
	for _, p := range s.problems {
		if p.TopicID == topicID {
			out = append(out, copyProblem(p))
		}
	}
	model.SortProblems(out)
	return out, nil
}

func (s *Store) ListAllProblems(ctx context.Context) ([]model.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Problem{}
	for _, p := range s.problems {
		out = append(out, copyProblem(p))
	}
	model.SortProblems(out)
	return out, nil
}

func (s *Store) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return nil, notFound("problem")
	}
	cp := copyProblem(p)
	return &cp, nil
}

func (s *Store) CreateProblem(ctx context.Context, p *model.Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[p.TopicID]
	if !ok {
		return notFound("problem parent")
	}
	if s.problemSlugTaken(p.Slug, p.ID) {
		return conflict("problem")
	}
	now := s.tick()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := copyProblem(p)
	s.problems[p.ID] = &cp
	t.ProblemCount++
	return nil
}

func (s *Store) UpdateProblem(ctx context.Context, p *model.Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.problems[p.ID]
	if !ok {
		return notFound("problem")
	}
	newTopic, ok := s.topics[p.TopicID]
	if !ok {
		return notFound("problem parent")
	}
	if s.problemSlugTaken(p.Slug, p.ID) {
		return conflict("problem")
	}
	if existing.TopicID != p.TopicID {
		if old, ok := s.topics[existing.TopicID]; ok && old.ProblemCount > 0 {
			old.ProblemCount--
		}
		newTopic.ProblemCount++
	}
	p.UpdatedAt = s.tick()
	cp := copyProblem(p)
	s.problems[p.ID] = &cp
	return nil
}

func (s *Store) deleteProblemLocked(id string) {
	p := s.problems[id]
	delete(s.problems, id)
	if t, ok := s.topics[p.TopicID]; ok && t.ProblemCount > 0 {
		t.ProblemCount--
	}
	for k := range s.states {
		if k.problem == id {
			delete(s.states, k)
		}
	}
}

func (s *Store) DeleteProblem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.problems[id]; !ok {
		return notFound("problem")
	}
	s.deleteProblemLocked(id)
	return nil
}

func (s *Store) UpsertProblemBySlug(ctx context.Context, p *model.Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[p.TopicID]; !ok {
		return notFound("problem parent")
	}
	for _, existing := range s.problems {
		if existing.Slug == p.Slug {
			p.ID, p.CreatedAt = existing.ID, existing.CreatedAt
			break
		}
	}
	p.UpdatedAt = s.tick()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	cp := copyProblem(p)
	s.problems[p.ID] = &cp
	return nil
}

func (s *Store) RecountProblems(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.topics {
		t.ProblemCount = 0
	}
	for _, p := range s.problems {
		if t, ok := s.topics[p.TopicID]; ok {
			t.ProblemCount++
		}
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &model.Stats{
		Users:    len(s.users),
		Paths:    len(s.paths),
		Topics:   len(s.topics),
		Problems: len(s.problems),
		Posts:    len(s.posts),
	}, nil
}

// ----- progress -----

func (s *Store) upsertState(userID, problemID string, mutate func(st *model.UserProblemState, created bool)) (*model.UserProblemState, error) {
	if _, ok := s.problems[problemID]; !ok {
		return nil, notFound("problem")
	}
	if _, ok := s.users[userID]; !ok {
		return nil, notFound("user")
	}
	key := stateKey{userID, problemID}
	st, ok := s.states[key]
	if !ok {
		st = &model.UserProblemState{UserID: userID, ProblemID: problemID, Status: model.StatusTodo}
		s.states[key] = st
	}
	mutate(st, !ok)
	st.UpdatedAt = s.tick()
	cp := *st
	return &cp, nil
}

func (s *Store) SetStatus(ctx context.Context, userID, problemID string, status model.ProblemStatus) (*model.UserProblemState, model.ProblemStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev model.ProblemStatus
	st, err := s.upsertState(userID, problemID, func(st *model.UserProblemState, created bool) {
		if !created {
			prev = st.Status
		}
		st.Status = status
	})
	return st, prev, err
}

func (s *Store) ToggleBookmark(ctx context.Context, userID, problemID string) (*model.UserProblemState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertState(userID, problemID, func(st *model.UserProblemState, created bool) {
		st.Bookmarked = !st.Bookmarked
	})
}

func (s *Store) UpdateNotes(ctx context.Context, userID, problemID, notes string) (*model.UserProblemState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertState(userID, problemID, func(st *model.UserProblemState, created bool) {
		st.Notes = notes
	})
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]model.UserProblemState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.UserProblemState{}
	for k, st := range s.states {
		if k.user == userID {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) SolvedProblemIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var solved []model.UserProblemState
	for k, st := range s.states {
		if k.user == userID && st.Status == model.StatusSolved {
			solved = append(solved, *st)
		}
	}
	sort.Slice(solved, func(i, j int) bool { return solved[i].UpdatedAt.Before(solved[j].UpdatedAt) })
	ids := []string{}
	for _, st := range solved {
		ids = append(ids, st.ProblemID)
	}
	return ids, nil
}

// ----- forum -----

func likeList(set map[string]bool) []string {
	out := []string{}
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) snapshotPost(id string, withReplies bool) model.Post {
	p := *s.posts[id]
	p.Tags = append([]string{}, p.Tags...)
	p.Likes = likeList(s.postLikes[id])
	p.LikeCount = len(p.Likes)
	p.ReplyCount = len(s.replies[id])
	p.Replies = nil
	if withReplies {
		p.Replies = []model.Reply{}
		for _, r := range s.replies[id] {
			cp := *r
			cp.Likes = likeList(s.replyLikes[r.ID])
			cp.LikeCount = len(cp.Likes)
			p.Replies = append(p.Replies, cp)
		}
	}
	return p
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[post.Author.ID]; !ok {
		return notFound("author")
	}
	post.CreatedAt = s.tick()
	post.Pinned = false
	cp := *post
	cp.Tags = append([]string{}, post.Tags...)
	s.posts[post.ID] = &cp
	s.postSeq[post.ID] = s.seq
	return nil
}

func (s *Store) FindPost(ctx context.Context, id string) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return nil, notFound("post")
	}
	p := s.snapshotPost(id, true)
	return &p, nil
}

func (s *Store) ListPosts(ctx context.Context, category string, sortKey model.ForumSort, limit, offset int) ([]model.Post, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := []model.Post{}
	for id, p := range s.posts {
		if category == "" || p.Category == category {
			all = append(all, s.snapshotPost(id, false))
		}
	}

	newerFirst := func(a, b model.Post) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch sortKey {
		case model.SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		case model.SortPopular:
			if a.LikeCount != b.LikeCount {
				return a.LikeCount > b.LikeCount
			}
		case model.SortActive:
			if a.ReplyCount != b.ReplyCount {
				return a.ReplyCount > b.ReplyCount
			}
		default:
			if a.Pinned != b.Pinned {
				return a.Pinned
			}
		}
		return newerFirst(a, b)
	})

	total := len(all)
	if offset >= total {
		return []model.Post{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *Store) AddReply(ctx context.Context, reply *model.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[reply.PostID]; !ok {
		return notFound("post")
	}
	if _, ok := s.users[reply.Author.ID]; !ok {
		return notFound("author")
	}
	reply.CreatedAt = s.tick()
	cp := *reply
	s.replies[reply.PostID] = append(s.replies[reply.PostID], &cp)
	return nil
}

func toggle(sets map[string]map[string]bool, target, userID string) *model.LikeResult {
	set, ok := sets[target]
	if !ok {
		set = map[string]bool{}
		sets[target] = set
	}
	if set[userID] {
		delete(set, userID)
		return &model.LikeResult{Liked: false, Likes: len(set)}
	}
	set[userID] = true
	return &model.LikeResult{Liked: true, Likes: len(set)}
}

func (s *Store) TogglePostLike(ctx context.Context, postID, userID string) (*model.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[postID]; !ok {
		return nil, notFound("post")
	}
	return toggle(s.postLikes, postID, userID), nil
}

func (s *Store) ToggleReplyLike(ctx context.Context, postID, replyID, userID string) (*model.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.replies[postID] {
		if r.ID == replyID {
			return toggle(s.replyLikes, replyID, userID), nil
		}
	}
	return nil, notFound("reply")
}

func (s *Store) SetPinned(ctx context.Context, postID string, pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return notFound("post")
	}
	p.Pinned = pinned
	return nil
}
