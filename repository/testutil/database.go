package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"time26/database"
)

// TestDatabase represents a migrated PostgreSQL test container
type TestDatabase struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	URL       string
}

// SetupTestDatabase starts PostgreSQL in a container and runs all migrations.
// Tests using it are skipped with -short.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("time26_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{
			"test":      "time26-repository",
			"test-name": t.Name(),
			"cleanup":   "auto",
		}),
	)
	require.NoError(t, err)

	testDB := &TestDatabase{Container: container}
	t.Cleanup(func() {
		testDB.cleanup(t)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.MigrateUp(connStr))

	db, err := database.NewConnection(ctx, connStr, 10)
	require.NoError(t, err)

	testDB.DB = db
	testDB.URL = connStr
	return testDB
}

func (td *TestDatabase) cleanup(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Logf("Panic during container cleanup (recovered): %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if td.DB != nil {
		td.DB.Close()
	}
	if td.Container != nil {
		if err := td.Container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate test container: %v", err)
		}
	}
}
