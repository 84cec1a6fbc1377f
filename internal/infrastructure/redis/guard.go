package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	guardKeyPrefix  = "checkout:guard:"
	DefaultGuardTTL = 10 * time.Second
	releaseTimeout  = 2 * time.Second
)

// releaseScript deletes the key only while it still holds this holder's token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Guard is an application.CheckoutGuard shared by every replica through Redis.
// The TTL frees keys of holders that died before releasing.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &Guard{client: client, ttl: ttl}
}

var _ application.CheckoutGuard = (*Guard)(nil)

func (g *Guard) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := guardKeyPrefix + key

	ok, err := g.client.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis guard: setnx: %w", err)
	}
	if !ok {
		return nil, application.ErrGuardHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The request context may already be done; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		_ = releaseScript.Run(rctx, g.client, []string{redisKey}, token).Err()
	}, nil
}

// Ping reports whether Redis is reachable.
func (g *Guard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
