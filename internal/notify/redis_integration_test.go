//go:build integration

package notify

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	addr, err := c.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisBridgeJoinsInstances(t *testing.T) {
	rdb := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	busA, busB := NewBus(), NewBus()
	a := NewRedisBridge(rdb, "test:notifications", busA)
	b := NewRedisBridge(rdb, "test:notifications", busB)
	go func() { _ = a.Run(ctx) }()
	go func() { _ = b.Run(ctx) }()

	inB, unsub := busB.Subscribe(4)
	defer unsub()

	// Subscriptions confirm asynchronously; keep publishing until one lands.
	var got Notification
	require.Eventually(t, func() bool {
		a.Publish(ctx, New(TypeContactReceived, "hola", nil))
		select {
		case got = <-inB:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, TypeContactReceived, got.Type)
	assert.Equal(t, "hola", got.Title)
}
