package queue

import (
	"context"
	"fmt"

	"algoforge/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

func ConnectRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("could not connect to redis: %w", err)
	}
	RDB = rdb
	return nil
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
	}
}
