package service

import (
	"context"
	"encoding/json"
	"time"

	"algoforge/internal/domain/model"
	"algoforge/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

// ActivityRecorder accepts activity events for asynchronous processing.
// Recording never fails from the caller's point of view.
type ActivityRecorder interface {
	Record(ctx context.Context, event model.ActivityEvent)
}

// ScoreBoard is the XP ranking projection.
type ScoreBoard interface {
	Add(ctx context.Context, userID string, xp int) error
	Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error)
	// Reset replaces every score, dropping users not in scores.
	Reset(ctx context.Context, scores map[string]int) error
}

// ActivityService pushes events onto the Redis list drained by
// worker.ActivityWorker.
type ActivityService struct {
	rdb       *redis.Client
	queueName string
	log       *logger.Logger
}

func NewActivityService(rdb *redis.Client, queueName string, log *logger.Logger) *ActivityService {
	return &ActivityService{rdb: rdb, queueName: queueName, log: log.With("service", "activity")}
}

func (s *ActivityService) Record(ctx context.Context, event model.ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("encode activity event", "kind", event.Kind, "error", err)
		return
	}
	// The push outlives request cancellation; the write it reports already happened.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.rdb.LPush(pushCtx, s.queueName, payload).Err(); err != nil {
		s.log.Error("enqueue activity event", "kind", event.Kind, "user_id", event.UserID, "error", err)
		return
	}
	s.log.Debug("activity event queued", "kind", event.Kind, "user_id", event.UserID, "xp", event.XP)
}
