//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockManager(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	locks := NewLockManager(client)

	unlock, err := locks.Acquire(ctx, "detect", time.Minute)
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, "detect", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()

	unlock, err = locks.Acquire(ctx, "detect", time.Minute)
	require.NoError(t, err)
	unlock()
}

func TestSignalBus(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	bus := NewSignalBus(client)

	require.NoError(t, bus.Publish(ctx, "opportunities", []byte(`{"action":"activate"}`)))

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.StreamAppend(ctx, "opportunities", []byte(p)))
	}
	got, err := bus.StreamRange(ctx, "opportunities", 2)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("c"), []byte("b")}, got)
}
