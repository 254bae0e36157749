package persistence_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/persistence"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest) (string, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port(req.ExposedPorts[0]))
	require.NoError(t, err)
	return host, port.Port()
}

func TestSQLStore_Postgres(t *testing.T) {
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "tally",
			"POSTGRES_USER":     "tally",
			"POSTGRES_PASSWORD": "tally",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(2 * time.Minute),
	})

	url := fmt.Sprintf("postgres://tally:tally@%s:%s/tally?sslmode=disable", host, port)
	store, err := persistence.NewStore(context.Background(), persistence.Config{
		Driver:      persistence.DriverPostgres,
		DatabaseURL: url,
	}, nil)
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)
}

func TestRedisStore(t *testing.T) {
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
	})

	store, err := persistence.NewRedisStoreFromURL(context.Background(), fmt.Sprintf("redis://%s:%s/0", host, port), "")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
	runStoreContract(t, store)
}
