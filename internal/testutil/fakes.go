package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"algoforge/internal/domain/model"
)

// Recorder captures activity events. When Store is set, events are applied
// synchronously, standing in for the queue and its worker.
type Recorder struct {
	mu     sync.Mutex
	Store  *Store
	Board  *Board
	events []model.ActivityEvent
}

func (r *Recorder) Record(ctx context.Context, event model.ActivityEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	if r.Store != nil {
		if _, err := r.Store.ApplyActivity(ctx, event); err != nil {
			return
		}
	}
	if r.Board != nil {
		_ = r.Board.Add(ctx, event.UserID, event.XP)
	}
}

func (r *Recorder) Events() []model.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ActivityEvent(nil), r.events...)
}

// EventsOf returns the recorded events of one kind.
func (r *Recorder) EventsOf(kind model.ActivityKind) []model.ActivityEvent {
	var out []model.ActivityEvent
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Cache is a map-backed content cache storing JSON under versioned keys like
// the Redis one.
type Cache struct {
	mu            sync.Mutex
	version       int64
	entries       map[string][]byte
	Hits          int
	Invalidations int
}

func NewCache() *Cache {
	return &Cache{entries: map[string][]byte{}}
}

func cacheKey(version int64, name string) string {
	return fmt.Sprintf("v%d:%s", version, name)
}

func (c *Cache) Get(ctx context.Context, name string, dst interface{}) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[cacheKey(c.version, name)]
	if !ok {
		return c.version, false, nil
	}
	c.Hits++
	return c.version, true, json.Unmarshal(raw, dst)
}

func (c *Cache) Set(ctx context.Context, name string, version int64, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(version, name)] = raw
	return nil
}

func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	for k := range c.entries {
		if !strings.HasPrefix(k, cacheKey(c.version, "")) {
			delete(c.entries, k)
		}
	}
	c.Invalidations++
	return nil
}

// Len counts entries readable under the current version.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, cacheKey(c.version, "")) {
			n++
		}
	}
	return n
}

// Board is an in-memory XP ranking. Err, when set, is returned from Top.
type Board struct {
	mu     sync.Mutex
	scores map[string]int
	Err    error
}

func NewBoard() *Board {
	return &Board{scores: map[string]int{}}
}

func (b *Board) Add(ctx context.Context, userID string, xp int) error {
	if xp == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scores[userID] += xp
	return nil
}

func (b *Board) Reset(ctx context.Context, scores map[string]int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scores = map[string]int{}
	for id, xp := range scores {
		if xp > 0 {
			b.scores[id] = xp
		}
	}
	return nil
}

// Score returns the projected XP of one user.
func (b *Board) Score(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scores[userID]
}

func (b *Board) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	out := make([]model.LeaderboardEntry, 0, len(b.scores))
	for id, xp := range b.scores {
		out = append(out, model.LeaderboardEntry{UserID: id, XP: xp})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].UserID > out[j].UserID
	})
	if len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}
