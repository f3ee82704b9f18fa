//go:build integration

package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})

	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("Failed to close redis client: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	return client
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	client := setupRedis(t)
	limiter := NewRedisLimiter(client, 3, time.Second)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		res, err := limiter.Allow(ctx, "signin:1.2.3.4")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if want := i <= 3; res.Allowed != want {
			t.Fatalf("hit %d: expected allowed=%v, got %v", i, want, res.Allowed)
		}
		if res.ResetAfter <= 0 || res.ResetAfter > time.Second {
			t.Errorf("hit %d: unexpected reset %s", i, res.ResetAfter)
		}
	}

	time.Sleep(1100 * time.Millisecond)

	res, err := limiter.Allow(ctx, "signin:1.2.3.4")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !res.Allowed || res.Remaining != 2 {
		t.Errorf("Expected a fresh window, got %+v", res)
	}
}
