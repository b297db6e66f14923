// Package testutil starts the containers integration tests run against.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgvectorImage = "pgvector/pgvector:0.8.1-pg18"
	rustfsImage   = "rustfs/rustfs:latest"

	pgCredential     = "study"
	RustFSCredential = "rustfsadmin"
)

// endpoint is a started container and the host port its service listens on.
type endpoint struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

func (e *endpoint) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(e.Container)
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port string) endpoint {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("%s port %s: %v", req.Image, port, err)
	}
	return endpoint{Container: container, Host: host, Port: mapped.Port()}
}

// PostgresContainer is a PostgreSQL server with the vector extension available.
type PostgresContainer struct {
	endpoint
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	e := start(ctx, t, testcontainers.ContainerRequest{
		Image:        pgvectorImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCredential,
			"POSTGRES_PASSWORD": pgCredential,
			"POSTGRES_DB":       pgCredential,
		},
		// The server restarts once after initdb, hence two readiness lines.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(time.Minute),
	}, "5432")
	return &PostgresContainer{endpoint: e}
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pgCredential, pgCredential, pc.Host, pc.Port, pgCredential)
}

// RustFSContainer is an S3-compatible object store for the document content store.
type RustFSContainer struct {
	endpoint
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	e := start(ctx, t, testcontainers.ContainerRequest{
		Image:        rustfsImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSCredential,
			"RUSTFS_SECRET_KEY": RustFSCredential,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000")
	return &RustFSContainer{endpoint: e}
}

func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.Host + ":" + rc.Port
}

// NewTestPool connects to pc, retrying while the server settles, and applies
// the *.up.sql files in migrationsDir in name order.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	var pool *pgxpool.Pool
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.New(ctx, pc.ConnectionString())
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("connect to postgres: %v", err)
	}

	if err := applyUpMigrations(ctx, pool, migrationsDir); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// applyUpMigrations executes the files directly; internal/database tests import this package.
func applyUpMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	slices.Sort(files)

	for _, name := range files {
		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// StartPostgres starts a migrated database whose container and pool are closed with t.
func StartPostgres(ctx context.Context, t *testing.T, migrationsDir string) *pgxpool.Pool {
	t.Helper()
	pc := NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	pool := NewTestPool(ctx, t, pc, migrationsDir)
	t.Cleanup(pool.Close)
	return pool
}

// InsertUser creates a user row directly and returns its ID.
func InsertUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := pool.Exec(ctx, `INSERT INTO users (id, name, created_at) VALUES ($1, $2, now())`, id, name); err != nil {
		t.Fatalf("insert user %q: %v", name, err)
	}
	return id
}
