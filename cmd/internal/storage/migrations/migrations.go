// Package migrations embeds the schema for every SQL backend and applies it
// with golang-migrate.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// DefaultSchema is the Postgres schema used when none is configured.
const DefaultSchema = "authcore"

// SchemaPlaceholder marks every schema-qualified name in the Postgres
// migrations.
const SchemaPlaceholder = "{{schema}}"

// UpPostgres creates schema if needed and applies pending Postgres migrations
// into it through pool. The version table lives in the same schema, so each
// schema migrates independently. It reports whether anything was applied.
func UpPostgres(ctx context.Context, pool *pgxpool.Pool, schema string) (bool, error) {
	if pool == nil {
		return false, errors.New("migrations: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = DefaultSchema
	}
	quoted := pgx.Identifier{schema}.Sanitize()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+quoted); err != nil {
		return false, fmt.Errorf("migrations: create schema: %w", err)
	}

	// Closing this handle does not close the pool.
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{SchemaName: schema})
	if err != nil {
		return false, fmt.Errorf("migrations: postgres driver: %w", err)
	}
	return up(Postgres(schema), "postgres", "pgx5", driver)
}

// Postgres returns the Postgres migrations with every schema placeholder
// replaced by the quoted schema identifier.
func Postgres(schema string) fs.FS {
	return schemaFS{base: FS, quoted: pgx.Identifier{schema}.Sanitize()}
}

// UpSQLite applies pending SQLite migrations to db.
func UpSQLite(db *sql.DB) (bool, error) {
	if db == nil {
		return false, errors.New("migrations: nil sqlite db")
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return false, fmt.Errorf("migrations: sqlite driver: %w", err)
	}
	// The migrator is not closed: closing it would close the caller's db.
	return up(FS, "sqlite", "sqlite", driver)
}

func up(fsys fs.FS, dir, dbName string, driver database.Driver) (bool, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return false, fmt.Errorf("migrations: source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return false, fmt.Errorf("migrations: init: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("migrations: up: %w", err)
	default:
		return true, nil
	}
}

type schemaFS struct {
	base   fs.FS
	quoted string
}

func (s schemaFS) Open(name string) (fs.File, error) {
	f, err := s.base.Open(name)
	if err != nil || !strings.HasSuffix(name, ".sql") {
		return f, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	body := strings.ReplaceAll(string(raw), SchemaPlaceholder, s.quoted)
	return &renderedFile{
		Reader: strings.NewReader(body),
		info:   renderedInfo{FileInfo: info, size: int64(len(body))},
	}, nil
}

type renderedFile struct {
	*strings.Reader
	info fs.FileInfo
}

func (f *renderedFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *renderedFile) Close() error               { return nil }

type renderedInfo struct {
	fs.FileInfo
	size int64
}

func (i renderedInfo) Size() int64 { return i.size }
