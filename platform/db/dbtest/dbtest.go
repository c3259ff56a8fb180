// Package dbtest starts a migrated Postgres container for repository tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"interior_portal_backend/migrations"
	"interior_portal_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type dsn string

func (d dsn) GetDatabaseURL() string { return string(d) }

// Start runs Postgres, applies the migrations and returns a pool. The test is
// skipped in -short mode or when no container provider is reachable.
func Start(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("portal_test"),
		postgres.WithUsername("portal"),
		postgres.WithPassword("portal"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.NewPool(ctx, dsn(url))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.RunMigrations(ctx, pool, migrations.FS))
	return pool
}

// InsertUser adds a user with the given roles and returns its id.
func InsertUser(t *testing.T, pool *pgxpool.Pool, email string, roles ...string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, first_name) VALUES ($1, 'x', 'Test') RETURNING id`, email).Scan(&id)
	require.NoError(t, err)
	for _, role := range roles {
		_, err := pool.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, id, role)
		require.NoError(t, err)
	}
	return id
}

// InsertInspector adds a user with an inspector profile.
func InsertInspector(t *testing.T, pool *pgxpool.Pool, email string) uuid.UUID {
	t.Helper()
	id := InsertUser(t, pool, email, "inspector")
	_, err := pool.Exec(context.Background(), `INSERT INTO inspectors (user_id) VALUES ($1)`, id)
	require.NoError(t, err)
	return id
}

// InsertRequest adds an inspection request in the given status.
func InsertRequest(t *testing.T, pool *pgxpool.Pool, clientID uuid.UUID, status string, estimatedCost *float64) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO inspection_requests (
			client_id, contact_name, contact_email, contact_phone,
			property_address, property_type, status, estimated_cost
		) VALUES ($1, 'Test Client', 'client@example.com', '+639171234567', '12 Acacia St', 'condo', $2, $3)
		RETURNING id`, clientID, status, estimatedCost).Scan(&id)
	require.NoError(t, err)
	return id
}

// Scalar reads a single value.
func Scalar[T any](t *testing.T, pool *pgxpool.Pool, query string, args ...any) T {
	t.Helper()
	var v T
	require.NoError(t, pool.QueryRow(context.Background(), query, args...).Scan(&v))
	return v
}
