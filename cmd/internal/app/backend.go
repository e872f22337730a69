package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"authcore/cmd/identity"
	"authcore/cmd/internal/auth/session"
	"authcore/cmd/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// backend is the storage the Session Manager runs on.
type backend struct {
	kind     string
	users    identity.Store
	sessions session.Store

	pool *pgxpool.Pool
	db   *sql.DB
}

// openBackend opens the stores selected by cfg.Storage.
func openBackend(ctx context.Context, cfg Config, log *zap.Logger) (*backend, error) {
	switch cfg.Storage {
	case StoragePostgres:
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		sessions, err := session.NewPostgresStore(pool, cfg.DBSchema)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("storage.open", zap.String("backend", StoragePostgres), zap.String("schema", cfg.DBSchema))
		return &backend{kind: StoragePostgres, users: users, sessions: sessions, pool: pool}, nil

	case StorageSQLite:
		db, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		users, err := identity.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		sessions, err := session.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("storage.open", zap.String("backend", StorageSQLite), zap.String("path", cfg.SQLitePath))
		return &backend{kind: StorageSQLite, users: users, sessions: sessions, db: db}, nil

	case StorageMemory, "":
		log.Warn("storage.open", zap.String("backend", StorageMemory), zap.String("note", "state is lost on restart"))
		return &backend{kind: StorageMemory, users: identity.NewMemoryStore(), sessions: session.NewMemoryStore()}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// hasDB reports whether the backend is a database that can be pinged.
func (b *backend) hasDB() bool { return b.pool != nil || b.db != nil }

// ping checks the database within timeout. Memory backends are always ready.
func (b *backend) ping(ctx context.Context, timeout time.Duration) error {
	switch {
	case b.pool != nil:
		return PingDB(ctx, b.pool, timeout)
	case b.db != nil:
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return b.db.PingContext(pctx)
	default:
		return nil
	}
}

func (b *backend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
