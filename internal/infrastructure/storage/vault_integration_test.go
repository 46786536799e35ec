//go:build integration

package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/turtacn/cakeys/internal/config"
)

func requireDockerOrSkip(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/var/run/docker.sock"); err != nil {
		t.Skip("Docker socket not accessible; skipping integration test")
	}
}

func TestVaultStorage_Integration(t *testing.T) {
	requireDockerOrSkip(t)
	ctx := context.Background()

	vaultC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "hashicorp/vault:1.15",
			ExposedPorts: []string{"8200/tcp"},
			Env:          map[string]string{"VAULT_DEV_ROOT_TOKEN_ID": "root"},
			WaitingFor: wait.ForHTTP("/v1/sys/health").WithStatusCodeMatcher(func(status int) bool {
				return status == http.StatusOK
			}),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = vaultC.Terminate(ctx) }()

	host, err := vaultC.Host(ctx)
	require.NoError(t, err)
	port, err := vaultC.MappedPort(ctx, "8200")
	require.NoError(t, err)

	// Dev mode mounts a KV v2 engine at secret/.
	s, err := NewVaultStorage("vault", config.VaultConfig{
		Address: fmt.Sprintf("http://%s:%s", host, port.Port()),
		Token:   "root",
	}, "cakeys-it")
	require.NoError(t, err)

	runStorageContract(t, s)
}

func TestRedisStorage_Integration(t *testing.T) {
	requireDockerOrSkip(t)
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = redisC.Terminate(ctx) }()

	endpoint, err := redisC.Endpoint(ctx, "")
	require.NoError(t, err)

	s := NewRedisStorage("cache", config.RedisConfig{Addresses: []string{endpoint}}, "")
	defer s.Close()

	runStorageContract(t, s)
}
