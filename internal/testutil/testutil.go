// Package testutil provides shared test utilities for integration tests
// against PostgreSQL.
//
// A single PostgreSQL container is started per test binary. Each call to DB
// gets its own database cloned from a template that already holds the
// fixture schema, so tests may run in parallel without sharing rows.
// Setting DATABASE_URL points the tests at an existing server instead.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

//go:embed testdata/schema.sql
var schemaSQL string

// Singleton container state
var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error

	templateOnce sync.Once
	templateName string
	templateErr  error
)

// SchemaSQL returns the embedded fixture schema.
func SchemaSQL() string {
	return schemaSQL
}

// ensureSingleton lazily initializes the singleton PostgreSQL container, or
// returns DATABASE_URL when set.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			singletonDSN = url
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		// Container is not stored - ryuk will handle cleanup automatically
		singletonDSN = dsn
	})

	return singletonDSN, singletonErr
}

// ensureTemplate creates the template database with the fixture schema.
func ensureTemplate(adminDSN string) (string, error) {
	templateOnce.Do(func() {
		templateName = uniqueDBName("tombstone_template")

		if err := createDatabase(adminDSN, templateName); err != nil {
			templateErr = fmt.Errorf("failed to create template database: %w", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := sql.Open("pgx", ReplaceDBName(adminDSN, templateName))
		if err != nil {
			templateErr = fmt.Errorf("open template database: %w", err)
			return
		}
		defer func() { _ = db.Close() }()

		if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
			templateErr = fmt.Errorf("apply fixture schema: %w", err)
			return
		}
	})

	return templateName, templateErr
}

// skipUnlessDatabase skips integration tests under -short or when no
// container runtime is reachable and DATABASE_URL is unset.
func skipUnlessDatabase(tb testing.TB) {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping integration test in short mode")
	}
	if os.Getenv("DATABASE_URL") != "" {
		return
	}
	if t, ok := tb.(*testing.T); ok {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}
}

// DB returns a connection to a fresh database holding the fixture schema.
// The database is dropped when the test completes.
func DB(tb testing.TB) *sql.DB {
	tb.Helper()
	skipUnlessDatabase(tb)

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err, "failed to start PostgreSQL")

	tmpl, err := ensureTemplate(adminDSN)
	require.NoError(tb, err, "failed to create template database")

	dbName := uniqueDBName("test")
	err = createDatabaseFromTemplate(adminDSN, dbName, tmpl)
	require.NoError(tb, err, "failed to create test database from template")

	dsn := ReplaceDBName(adminDSN, dbName)
	db, err := sql.Open("pgx", dsn)
	require.NoError(tb, err, "failed to connect to test database")
	require.NoError(tb, db.Ping(), "failed to ping test database")

	registerCleanup(tb, db, adminDSN, dbName)
	return db
}

// DSN returns a connection string for a fresh database holding the fixture
// schema, for code that opens its own connections.
func DSN(tb testing.TB) string {
	tb.Helper()
	skipUnlessDatabase(tb)

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err, "failed to start PostgreSQL")
	tmpl, err := ensureTemplate(adminDSN)
	require.NoError(tb, err, "failed to create template database")

	dbName := uniqueDBName("test")
	require.NoError(tb, createDatabaseFromTemplate(adminDSN, dbName, tmpl))
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = dropDatabase(ctx, adminDSN, dbName)
	})
	return ReplaceDBName(adminDSN, dbName)
}

// registerCleanup closes the connection and drops the database.
func registerCleanup(tb testing.TB, db *sql.DB, adminDSN, dbName string) {
	tb.Cleanup(func() {
		_ = db.Close()

		// Drop database in background
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = dropDatabase(ctx, adminDSN, dbName)
		}()
	})
}

// uniqueDBName generates a unique database name with the given prefix.
func uniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

func createDatabase(adminDSN, name string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", name))
	return err
}

func createDatabaseFromTemplate(adminDSN, name, template string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// First, ensure no connections to template
	_, _ = db.Exec(`
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`, template)

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s WITH TEMPLATE %s", name, template))
	return err
}

func dropDatabase(ctx context.Context, adminDSN, name string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", name))
	return err
}

// ReplaceDBName replaces the database name in a postgres:// URL.
func ReplaceDBName(dsn, newDB string) string {
	query := ""
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn, query = dsn[:i], dsn[i:]
	}
	if i := strings.LastIndexByte(dsn, '/'); i >= 0 && i > strings.Index(dsn, "://")+2 {
		return dsn[:i+1] + newDB + query
	}
	return dsn + "/" + newDB + query
}
