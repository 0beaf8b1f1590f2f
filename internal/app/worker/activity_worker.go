package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"algoforge/internal/app/service"
	"algoforge/internal/domain/model"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix = "activity:lock:"
	// jobTimeout bounds the handling of one popped event, shutdown included.
	jobTimeout = 10 * time.Second
)

// releaseScript deletes the lock only while it still holds our value.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// ActivityWorker drains the activity queue. Each event is applied to the
// user's row (XP, streak, log) and then to the leaderboard projection.
type ActivityWorker struct {
	rdb       *redis.Client
	queueName string
	lockTTL   time.Duration
	users     repository.UserRepository
	board     service.ScoreBoard
	log       *logger.Logger
}

func NewActivityWorker(
	rdb *redis.Client,
	queueName string,
	lockTTL time.Duration,
	users repository.UserRepository,
	board service.ScoreBoard,
	log *logger.Logger,
) *ActivityWorker {
	return &ActivityWorker{
		rdb:       rdb,
		queueName: queueName,
		lockTTL:   lockTTL,
		users:     users,
		board:     board,
		log:       log.With("worker", "activity"),
	}
}

func (w *ActivityWorker) Start(ctx context.Context) {
	w.log.Info("activity worker started", "queue", w.queueName)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("activity worker stopping")
			return
		default:
		}

		// BRPop returns [queueName, value].
		res, err := w.rdb.BRPop(ctx, time.Second, w.queueName).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.log.Error("brpop failed", "queue", w.queueName, "error", err)
			sleep(ctx, 5*time.Second)
			continue
		}
		if len(res) < 2 || res[1] == "" {
			w.log.Warn("brpop returned an empty payload")
			continue
		}
		w.handle(ctx, res[1])
	}
}

// detach returns a context for one popped event. Cancelling the worker does
// not abort it, so an event already removed from the queue is still applied.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
}

func (w *ActivityWorker) handle(ctx context.Context, payload string) {
	jobCtx, cancel := detach(ctx)
	defer cancel()

	var event model.ActivityEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		w.log.Error("dropping malformed activity event", "error", err)
		return
	}
	if event.UserID == "" {
		w.log.Warn("dropping activity event without user", "kind", event.Kind)
		return
	}

	lockKey := lockKeyPrefix + event.UserID
	lockValue := uuid.NewString()
	ok, err := w.rdb.SetNX(jobCtx, lockKey, lockValue, w.lockTTL).Result()
	if err != nil || !ok {
		if err != nil {
			w.log.Error("activity lock acquisition failed", "user_id", event.UserID, "error", err)
		} else {
			w.log.Debug("activity lock busy, requeueing", "user_id", event.UserID)
		}
		w.requeue(jobCtx, payload)
		sleep(ctx, 100*time.Millisecond)
		return
	}
	defer func() {
		deleted, err := releaseScript.Run(jobCtx, w.rdb, []string{lockKey}, lockValue).Int64()
		if err != nil {
			w.log.Error("activity lock release failed", "user_id", event.UserID, "error", err)
		} else if deleted == 0 {
			w.log.Warn("activity lock expired before release", "user_id", event.UserID)
		}
	}()

	if err := w.Apply(jobCtx, event); err != nil {
		w.log.Error("apply activity event", "user_id", event.UserID, "kind", event.Kind, "error", err)
	}
}

// Apply writes one event to Postgres and then to the leaderboard. A
// leaderboard failure is logged only; LeaderboardService.Rebuild repairs it.
func (w *ActivityWorker) Apply(ctx context.Context, event model.ActivityEvent) error {
	user, err := w.users.ApplyActivity(ctx, event)
	if err != nil {
		return fmt.Errorf("ActivityWorker.Apply: %w", err)
	}
	if w.board != nil {
		if err := w.board.Add(ctx, event.UserID, event.XP); err != nil {
			w.log.Error("leaderboard update failed, projection out of sync until the next rebuild",
				"user_id", event.UserID, "xp", event.XP, "error", err)
		}
	}
	w.log.Debug("activity applied", "user_id", user.ID, "kind", event.Kind, "xp", user.XP, "streak", user.Streak)
	return nil
}

func (w *ActivityWorker) requeue(ctx context.Context, payload string) {
	if err := w.rdb.RPush(ctx, w.queueName, payload).Err(); err != nil {
		w.log.Error("requeue activity event", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
