package taskgraph

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pragmas applied to the registry connection. WAL plus a busy timeout
// lets concurrent workers record completions without stepping on each
// other.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA foreign_keys = ON",
}

// Registry records the signature of every completed task in a SQLite
// database so later runs can skip work whose inputs have not changed.
type Registry struct {
	db    *sql.DB
	runID string
}

// OpenRegistry opens (creating if needed) the registry database at
// path and brings its schema up to date.
func OpenRegistry(path string, log zerolog.Logger) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open task registry: %w", err)
	}
	// The pragmas bind to a connection, so hold exactly one.
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := migrateUp(db, log); err != nil {
		db.Close()
		return nil, err
	}
	return &Registry{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies this process in the registry rows.
func (r *Registry) RunID() string { return r.runID }

// Close releases the underlying database.
func (r *Registry) Close() error { return r.db.Close() }

// Done reports whether a task with this signature completed before.
func (r *Registry) Done(ctx context.Context, key string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM completed_tasks WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query task registry: %w", err)
	}
	return true, nil
}

// Record stores a completed task's signature.
func (r *Registry) Record(ctx context.Context, name, key string, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO completed_tasks (key, task_name, run_id, completed_at)
		 VALUES (?, ?, ?, ?)`,
		key, name, r.runID, completedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record task %s: %w", name, err)
	}
	return nil
}

// migrateUp applies all pending registry migrations from the embedded
// filesystem.
func migrateUp(db *sql.DB, log zerolog.Logger) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{log: log}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate task registry: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct {
	log zerolog.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug().Msgf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
