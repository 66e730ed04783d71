package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

// ensureRedis lazily starts the singleton Redis container, or returns
// REDIS_ADDR when set.
func ensureRedis() (string, error) {
	redisOnce.Do(func() {
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			redisAddr = addr
			return
		}

		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor: wait.ForLog("Ready to accept connections").
					WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			redisErr = fmt.Errorf("failed to start Redis container: %w", err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			redisErr = fmt.Errorf("failed to get Redis host: %w", err)
			return
		}
		port, err := container.MappedPort(ctx, "6379")
		if err != nil {
			redisErr = fmt.Errorf("failed to get Redis port: %w", err)
			return
		}
		redisAddr = fmt.Sprintf("%s:%s", host, port.Port())
	})
	return redisAddr, redisErr
}

// Redis returns a client for the shared Redis server and a key prefix unique
// to the calling test. Keys under the prefix are removed when the test
// completes.
func Redis(tb testing.TB) (*redis.Client, string) {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping integration test in short mode")
	}
	if os.Getenv("REDIS_ADDR") == "" {
		if t, ok := tb.(*testing.T); ok {
			testcontainers.SkipIfProviderIsNotHealthy(t)
		}
	}

	addr, err := ensureRedis()
	require.NoError(tb, err, "failed to start Redis")

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(tb, client.Ping(context.Background()).Err(), "failed to ping Redis")

	prefix := uniqueDBName("test") + ":"
	tb.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			_ = client.Del(ctx, iter.Val()).Err()
		}
		_ = client.Close()
	})
	return client, prefix
}
