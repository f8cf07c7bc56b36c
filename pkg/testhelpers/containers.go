// Package testhelpers provides shared fixtures for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/database"
)

// PostgresImage is PostgreSQL with the pgvector extension available.
const PostgresImage = "pgvector/pgvector:pg17"

// EngineDB holds a migrated database in a shared container.
type EngineDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error
)

// GetEngineDB returns a shared, migrated database for integration tests.
// The container is started once and reused by every test in the run.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = setupEngineDB()
	})

	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to setup engine database: %v", sharedEngineDBErr)
	}

	return sharedEngineDB
}

// MigrationsPath returns the absolute path of the repository's migrations directory.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func setupEngineDB() (*EngineDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "ideaflow_test",
			"POSTGRES_USER":     "ideaflow",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The entrypoint restarts postgres once after init.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://ideaflow:test_password@%s:%s/ideaflow_test?sslmode=disable",
		host, port.Port())

	sqlDB, err := database.OpenForMigrations(connStr)
	if err != nil {
		return nil, err
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, MigrationsPath(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine database: %w", err)
	}

	return &EngineDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// CreateWorkspace inserts a fresh workspace with duplicate detection enabled.
func (e *EngineDB) CreateWorkspace(t *testing.T, name string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	scope, err := e.DB.WithoutTenant(ctx)
	if err != nil {
		t.Fatalf("failed to acquire connection: %v", err)
	}
	defer scope.Close()

	id := uuid.New()
	if _, err := scope.Conn.Exec(ctx,
		`INSERT INTO workspaces (id, name, dedup_enabled) VALUES ($1, $2, true)`, id, name,
	); err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	return id
}

// TenantContext returns a context scoped to the workspace. The scope is
// released when the test ends.
func (e *EngineDB) TenantContext(t *testing.T, workspaceID uuid.UUID) context.Context {
	t.Helper()
	ctx := context.Background()

	scope, err := e.DB.WithTenant(ctx, workspaceID)
	if err != nil {
		t.Fatalf("failed to create tenant scope: %v", err)
	}
	t.Cleanup(scope.Close)
	return database.SetTenantScope(ctx, scope)
}
