// Package cachetest finds a reachable Redis for integration tests.
package cachetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agricapital/agricapital/internal/pkg/env"
)

func candidates() (hosts, ports, passwords []string) {
	hosts = unique(env.GetEnv("CACHE_HOST", ""), "cache", "agricapital-cache", "localhost", "127.0.0.1")
	ports = unique(env.GetEnv("CACHE_PORT", "6379"), "6379")
	passwords = unique(env.GetEnv("CACHE_PASSWORD", ""), "")
	return hosts, ports, passwords
}

func unique(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for i, v := range values {
		// empty hosts and ports are skipped, an empty password is valid
		if v == "" && i < len(values)-1 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Resolve returns the first Redis endpoint answering PING, or skips t.
func Resolve(t testing.TB) (addr, password string) {
	t.Helper()

	hosts, ports, passwords := candidates()
	var lastErr error
	for _, host := range hosts {
		for _, port := range ports {
			for _, pw := range passwords {
				a := fmt.Sprintf("%s:%s", host, port)
				client := redis.NewClient(&redis.Options{Addr: a, Password: pw})

				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				err := client.Ping(ctx).Err()
				cancel()
				_ = client.Close()
				if err == nil {
					return a, pw
				}
				lastErr = err
			}
		}
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return "", ""
}

// NewIsolatedClient returns a client on db, flushed before and after the test.
func NewIsolatedClient(t testing.TB, db int) *redis.Client {
	t.Helper()

	addr, password := Resolve(t)
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("failed to flush isolated redis db %d: %v", db, err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}
