package data

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	runStatePrefix = "runstate:"
	streamEvents   = "repostbot.moderation"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// SetRunState persists the per-guild enabled flag. No TTL: the flag should
// survive bot restarts.
func SetRunState(ctx context.Context, rdb *redis.Client, guildID string, enabled bool) error {
	val := "1"
	if !enabled {
		val = "0"
	}
	return rdb.Set(ctx, runStatePrefix+guildID, val, 0).Err()
}

// GetRunState returns the stored flag and whether a value was present.
func GetRunState(ctx context.Context, rdb *redis.Client, guildID string) (enabled, found bool, err error) {
	val, err := rdb.Get(ctx, runStatePrefix+guildID).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val != "0", true, nil
}

// PublishModerationEvent appends a moderation event to the Redis stream for
// external consumers (audit dashboards, etc). Best effort.
func PublishModerationEvent(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	payload["event_id"] = uuid.NewString()
	payload["time"] = time.Now().Unix()
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamEvents,
		Values: payload,
	}).Result()
	return err
}
