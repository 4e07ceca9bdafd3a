package data

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

const (
	streamPolls     = "costream.polls"
	streamSnapshots = "costream.snapshots"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// PublishPollSummary pushes one poll-cycle summary onto the poll event
// stream for dashboard consumers.
func PublishPollSummary(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamPolls,
		Values: payload,
	}).Result()
	return err
}

// PublishSnapshot pushes one per-tournament viewership snapshot onto the
// snapshot event stream.
func PublishSnapshot(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamSnapshots,
		Values: payload,
	}).Result()
	return err
}
