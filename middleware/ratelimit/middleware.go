package ratelimit

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// KeyFunc derives the per-caller limit key from a request, typically the
// authenticated user id.
type KeyFunc func(c *fiber.Ctx) string

// Config holds per-scope rate limit settings.
type Config struct {
	Tokens int
	Period time.Duration
}

// DefaultConfig returns the default limit of 60 requests per minute.
func DefaultConfig() Config {
	return Config{
		Tokens: 60,
		Period: time.Minute,
	}
}

// New returns a Fiber middleware that enforces the limit per caller and
// scope. Redis failures fail open: availability beats enforcement for a
// best-effort limiter.
func New(limiter *Limiter, scope string, config Config, key KeyFunc) fiber.Handler {
	if config.Tokens <= 0 || config.Period <= 0 {
		config = DefaultConfig()
	}

	return func(c *fiber.Ctx) error {
		caller := key(c)
		if caller == "" {
			return c.Next()
		}

		result, err := limiter.Allow(c.UserContext(), scope+":"+caller, config.Tokens, config.Period)
		if err != nil {
			log.Printf("[ratelimit] check failed for %s:%s: %v", scope, caller, err)
			return c.Next()
		}

		if !result.Allowed {
			retryIn := int(result.RetryIn.Seconds())
			if retryIn < 1 {
				retryIn = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryIn))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": fmt.Sprintf("Rate limit exceeded (%d per %s)", config.Tokens, config.Period),
			})
		}
		return c.Next()
	}
}
