package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"todo-server/internal/request"
)

const defaultRatelimitRate = "5-S"

// RateLimiter is a Redis-backed request rate limiter keyed by client IP.
// The auth endpoints sit behind it so credential guessing stays slow.
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter connects to Redis and verifies the connection.
func NewRateLimiter(redisURL string) (*RateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RateLimiter{client: client}, nil
}

// Middleware builds a rate limiting middleware from a formatted rate such
// as "5-S" or "100-M".
func (l *RateLimiter) Middleware(rateStr string) (func(http.Handler) http.Handler, error) {
	if rateStr == "" {
		rateStr = defaultRatelimitRate
	}
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate %q: %w", rateStr, err)
	}
	store, err := redisstore.NewStore(l.client)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis store: %w", err)
	}
	instance := limiter.New(store, rate)
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler, nil
}

// Ping verifies the Redis connection is alive.
func (l *RateLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *RateLimiter) Close() error {
	return l.client.Close()
}
