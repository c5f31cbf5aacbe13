package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// slidingWindow trims the tenant's sorted set to the window, then adds the send
// only while the remaining count is below the limit.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Redis shares the window across worker processes.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions, limit int, window time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisWithClient(client, limit, window), nil
}

func NewRedisWithClient(client *redis.Client, limit int, window time.Duration) *Redis {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:tenant:",
		now:    time.Now,
	}
}

var _ Limiter = (*Redis)(nil)

func (r *Redis) Allow(ctx context.Context, tenantID uint) (bool, error) {
	key := r.prefix + strconv.FormatUint(uint64(tenantID), 10)

	ok, err := slidingWindow.Run(ctx, r.client, []string{key},
		r.now().UnixMilli(),
		r.window.Milliseconds(),
		r.limit,
		uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit tenant %d: %w", tenantID, err)
	}
	return ok == 1, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
