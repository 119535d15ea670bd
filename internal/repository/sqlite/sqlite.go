// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go port, so the binary needs no C toolchain.
// Every connection is opened with a busy timeout and with "_txlock=immediate":
// BeginTx issues BEGIN IMMEDIATE, which takes the database write lock up front.
// A transaction therefore never observes a row that another writer changes
// before it commits, which is what promo redemption relies on.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/secretum/internal/repository"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// compile-time check that *DB satisfies the store contract
var _ repository.Store = (*DB)(nil)

// querier is the subset of *sql.DB and *sql.Tx the repositories use, so the
// same code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and hands out repositories bound to it.
type DB struct {
	conn  *sql.DB
	repos repos
}

// repos is one set of repositories sharing a querier.
type repos struct {
	users       *UserDB
	promos      *PromoDB
	activations *ActivationDB
}

func newRepos(q querier) repos {
	return repos{
		users:       &UserDB{q: q},
		promos:      &PromoDB{q: q},
		activations: &ActivationDB{q: q},
	}
}

func (r repos) Users() repository.UserRepository             { return r.users }
func (r repos) PromoCodes() repository.PromoCodeRepository   { return r.promos }
func (r repos) Activations() repository.ActivationRepository { return r.activations }

// New opens the database at dbPath and applies pending migrations.
//
// dbPath examples:
//   - "data/secretum.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database, pinned to one connection
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn, repos: newRepos(conn)}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Add("_pragma", "busy_timeout(10000)")
	params.Add("_pragma", "foreign_keys(1)")
	if dbPath != ":memory:" {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	return dbPath + "?" + params.Encode()
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Users() repository.UserRepository             { return db.repos.users }
func (db *DB) PromoCodes() repository.PromoCodeRepository   { return db.repos.promos }
func (db *DB) Activations() repository.ActivationRepository { return db.repos.activations }

// WithinTx runs fn in one immediate transaction. The transaction is committed
// only if fn returns nil; any error or panic rolls it back. fn's error is
// returned as-is so callers can still match apperror kinds.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	committed = true
	return nil
}

// migrate applies every embedded migration that is not yet recorded in
// schema_migrations, each in its own transaction.
func (db *DB) migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var applied int
		err := db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := db.applyMigration(ctx, name, string(content)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
	}

	return nil
}

func (db *DB) applyMigration(ctx context.Context, name, content string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
		name, toMillis(time.Now()),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Timestamps are stored as UTC unix milliseconds.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint
// failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
			return false
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
