package authinfra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/logx"
)

// RateLimitProfile is one throttling policy: at most Max requests per
// Window per key.
type RateLimitProfile struct {
	Name   string
	Window time.Duration
	Max    int
}

// Standard profiles. Login and OTP issuance are throttled hard, general
// API traffic loosely.
var (
	ProfileAuth  = RateLimitProfile{Name: "auth", Window: 15 * time.Minute, Max: 5}
	ProfileOTP   = RateLimitProfile{Name: "otp", Window: time.Minute, Max: 1}
	ProfileReset = RateLimitProfile{Name: "reset", Window: time.Hour, Max: 3}
	ProfileAPI   = RateLimitProfile{Name: "api", Window: 15 * time.Minute, Max: 100}
)

var rateLimitErrors = errx.NewRegistry("RATELIMIT")

var (
	CodeRateLimited = rateLimitErrors.Register("EXCEEDED", errx.TypeRateLimit, fiber.StatusTooManyRequests, "Too many requests, please try again later")
)

// RedisRateLimiter implements auth.RateLimiter on a shared Redis counter,
// so limits hold across instances.
type RedisRateLimiter struct {
	client  *redis.Client
	profile RateLimitProfile
}

// NewRedisRateLimiter creates a limiter for one profile.
func NewRedisRateLimiter(client *redis.Client, profile RateLimitProfile) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, profile: profile}
}

// Allow counts the request against the key's window.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", l.profile.Name, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, errx.Wrap(err, "rate limiter unavailable", errx.TypeExternal)
	}
	if count == 1 {
		// First hit opens the window.
		if err := l.client.Expire(ctx, redisKey, l.profile.Window).Err(); err != nil {
			return false, 0, errx.Wrap(err, "rate limiter unavailable", errx.TypeExternal)
		}
	}

	remaining := l.profile.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(l.profile.Max), remaining, nil
}

// RateLimitMiddleware throttles a route group with the given limiter,
// keyed by client IP. When Redis is down requests are let through.
func RateLimitMiddleware(limiter auth.RateLimiter, max int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, remaining, err := limiter.Allow(c.Context(), c.IP())
		if err != nil {
			logx.WithError(err).Warn("rate limiter check failed, allowing request")
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			return rateLimitErrors.New(CodeRateLimited)
		}
		return c.Next()
	}
}
