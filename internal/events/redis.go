package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/anilpdv/video-downloader/internal/logger"
)

// Channel for mirrored job events.
const redisChannel = "downloads:events"

// NewRedisClient connects to Redis from a URL and verifies the connection.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisMirror republishes bridge events onto a Redis pub/sub channel so
// observer processes outside this one can follow job progress. It runs as
// an ordinary bridge subscriber: publish failures are logged and job
// processing is never affected.
type RedisMirror struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisMirror creates a mirror over an established client.
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{
		client: client,
		log:    logger.Default().WithComponent("events.redis"),
	}
}

// Run mirrors all bridge events until the context is cancelled.
func (m *RedisMirror) Run(ctx context.Context, bridge *Bridge) {
	sub := bridge.Subscribe(uuid.Nil)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				m.log.Error(ctx, "failed to marshal job event", err)
				continue
			}

			if err := m.client.Publish(ctx, redisChannel, data).Err(); err != nil {
				m.log.Warn(ctx, "failed to mirror job event to redis", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

// SubscribeRemote returns the Redis subscription an external observer uses
// to follow mirrored events.
func SubscribeRemote(ctx context.Context, client *redis.Client) *redis.PubSub {
	return client.Subscribe(ctx, redisChannel)
}
