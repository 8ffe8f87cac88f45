package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"NewsPipeline/internal/ports"
)

const keyPrefix = "newspipeline:lock:"

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker shares hook locks between processes through SET NX PX.
type RedisLocker struct {
	client *redis.Client
}

var _ ports.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a client for addr.
func NewRedisLocker(addr, password string, db int) *RedisLocker {
	return &RedisLocker{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Ping verifies the server is reachable.
func (r *RedisLocker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}

func (r *RedisLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, keyPrefix+name, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisLocker) Release(ctx context.Context, name, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{keyPrefix + name}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
