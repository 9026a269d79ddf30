package helper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	dbName = "database"
	dbUser = "user"
	dbPwd  = "password"
)

// MustStartPostgresContainer starts a throwaway Postgres container and
// returns its teardown function and the mapped port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("error starting postgres container: %w", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, "", fmt.Errorf("error getting mapped port: %w", err)
	}

	return pgContainer.Terminate, port.Port(), nil
}

// SetTestDatabaseConfigEnvs points the database configuration environment
// at a container started by MustStartPostgresContainer.
func SetTestDatabaseConfigEnvs(t *testing.T, dbPort string) {
	t.Setenv("ARCHIVIST_DB_HOST", "localhost")
	t.Setenv("ARCHIVIST_DB_PORT", dbPort)
	t.Setenv("ARCHIVIST_DB_DATABASE", dbName)
	t.Setenv("ARCHIVIST_DB_USERNAME", dbUser)
	t.Setenv("ARCHIVIST_DB_PASSWORD", dbPwd)
	t.Setenv("ARCHIVIST_DB_SCHEMA", "public")
	t.Setenv("ARCHIVIST_DB_SSLMODE", "disable")
	t.Setenv("ARCHIVIST_DB_WITH_TABLE_DROP", "true")
}
