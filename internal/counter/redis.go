package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAllocator keeps the global counter in a string key and each
// resource's child counters in a hash. Lua scripts keep the
// existence-check-then-increment step atomic on the server.
type RedisAllocator struct {
	client *redis.Client
	prefix string
}

// NewRedisAllocator connects to redisURL and verifies the connection.
func NewRedisAllocator(redisURL string) (*RedisAllocator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisAllocatorWithClient(client), nil
}

// NewRedisAllocatorWithClient wraps an existing client.
func NewRedisAllocatorWithClient(client *redis.Client) *RedisAllocator {
	return &RedisAllocator{client: client, prefix: "counters:"}
}

// nextResourceScript allocates the next resource id and initializes its
// child counter hash in the same script, so the two writes are one atomic
// unit on the server.
var nextResourceScript = redis.NewScript(`
local id = redis.call('INCR', KEYS[1]) - 1
redis.call('HSET', ARGV[1] .. id, 'comment', 0, 'upvote', 0, 'flag', 0)
return id
`)

// nextChildScript refuses to create the hash on demand: a missing counter
// document must fail, not silently hand out 0.
var nextChildScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return redis.error_reply('no counter document')
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], 1) - 1
`)

func (a *RedisAllocator) globalKey() string {
	return a.prefix + "resources:next"
}

func (a *RedisAllocator) resourceKey(resourceID int64) string {
	return a.prefix + "resource:" + strconv.FormatInt(resourceID, 10)
}

func (a *RedisAllocator) NextResourceID(ctx context.Context) (int64, error) {
	id, err := nextResourceScript.Run(ctx, a.client, []string{a.globalKey()}, a.prefix+"resource:").Int64()
	if err != nil {
		return 0, fmt.Errorf("allocate resource id: %w", err)
	}
	return id, nil
}

func (a *RedisAllocator) NextChildID(ctx context.Context, resourceID int64, kind Kind) (int64, error) {
	if !kind.valid() {
		return 0, ErrUnknownKind
	}
	id, err := nextChildScript.Run(ctx, a.client, []string{a.resourceKey(resourceID)}, string(kind)).Int64()
	if err != nil {
		if strings.Contains(err.Error(), "no counter document") {
			return 0, ErrNoCounter
		}
		return 0, fmt.Errorf("allocate %s id for resource %d: %w", kind, resourceID, err)
	}
	return id, nil
}

func (a *RedisAllocator) DropCounters(ctx context.Context, resourceID int64) error {
	if err := a.client.Del(ctx, a.resourceKey(resourceID)).Err(); err != nil {
		return fmt.Errorf("drop counters for resource %d: %w", resourceID, err)
	}
	return nil
}

// Close closes the underlying client.
func (a *RedisAllocator) Close() error {
	return a.client.Close()
}

// Ping checks that Redis is reachable.
func (a *RedisAllocator) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
