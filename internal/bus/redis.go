package bus

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campusgig/internal/errors"
)

// invalidationChannel carries one cache key per message.
const invalidationChannel = "campusgig:invalidations"

// Connect dials and verifies the Redis connection shared by the invalidation
// bus and the HTTP rate limiter.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "redis.ParseURL")
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping failed")
	}
	return rdb, nil
}

// Redis is a Bus on Redis pub/sub: every process sees every invalidation.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedis wraps an already-connected client.
func NewRedis(client *redis.Client, log *zap.Logger) *Redis {
	return &Redis{client: client, log: log}
}

func (b *Redis) Publish(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	pipe := b.client.Pipeline()
	for _, k := range keys {
		pipe.Publish(ctx, invalidationChannel, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "publish invalidations")
	}
	return nil
}

func (b *Redis) Subscribe(ctx context.Context, h Handler) error {
	sub := b.client.Subscribe(ctx, invalidationChannel)
	// Confirm the subscription before reporting success.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return errors.Wrap(err, "subscribe invalidations")
	}

	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.log.Warn("invalidation subscription closed")
					return
				}
				h(msg.Payload)
			}
		}
	}()
	return nil
}
