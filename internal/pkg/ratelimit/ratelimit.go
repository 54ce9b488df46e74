package ratelimit

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/agricapital/agricapital/internal/pkg/cache"
	"github.com/agricapital/agricapital/internal/pkg/env"
)

var (
	storage     fiber.Storage
	storageOnce sync.Once
)

// Storage returns the Redis storage shared by all limiters, so counters hold
// across instances.
func Storage() fiber.Storage {
	storageOnce.Do(func() {
		// Reuse the address of the existing cache client
		cacheClient := cache.GetClient()
		host := "localhost"
		port := 6379
		password := env.GetEnv("CACHE_PASSWORD", "")
		if cacheClient != nil {
			addr := cacheClient.Options().Addr
			if h, p, err := net.SplitHostPort(addr); err == nil {
				host = h
				if v, err := strconv.Atoi(p); err == nil {
					port = v
				}
			}
			if p := cacheClient.Options().Password; p != "" {
				password = p
			}
		}

		// Database 1 keeps limiter keys apart from snapshots and counters (DB 0)
		storage = redis.New(redis.Config{
			Host:     host,
			Port:     port,
			Password: password,
			Database: 1,
			Reset:    false,
		})
	})
	return storage
}

// New returns a per-IP limiter allowing max requests per window. name keeps
// the counters of different limiters apart in the shared storage.
func New(name string, max int, window time.Duration) fiber.Handler {
	return newLimiter(name, max, window, Storage())
}

func newLimiter(name string, max int, window time.Duration, store fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    store,
		KeyGenerator: func(c *fiber.Ctx) string {
			return name + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	})
}
