package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"lor-api/internal/domain/character"
	"lor-api/internal/domain/location"
	"lor-api/internal/platform/config"
	"lor-api/internal/platform/db"
	"lor-api/internal/platform/migrate"
	"lor-api/internal/storage/postgres"
	"lor-api/internal/storage/sqlite"
)

// Store owns the process-wide connection handle and the repositories built on it.
type Store struct {
	Characters character.Repository
	Locations  location.Repository
	Ledger     migrate.Ledger

	ping  func(context.Context) error
	close func()
}

func Open(ctx context.Context, cfg config.Database) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		pool, err := db.Connect(ctx, cfg.PostgresURL, db.PoolOptions{MinConns: cfg.MinConns, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		return NewPostgres(pool), nil
	case config.DriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLite(sqlDB), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func NewPostgres(pool *pgxpool.Pool) *Store {
	return &Store{
		Characters: postgres.NewCharacters(pool),
		Locations:  postgres.NewLocations(pool),
		Ledger:     migrate.NewPostgresLedger(pool),
		ping:       pool.Ping,
		close:      pool.Close,
	}
}

func NewSQLite(sqlDB *sql.DB) *Store {
	return &Store{
		Characters: sqlite.NewCharacters(sqlDB),
		Locations:  sqlite.NewLocations(sqlDB),
		Ledger:     migrate.NewSQLiteLedger(sqlDB),
		ping:       sqlDB.PingContext,
		close:      func() { _ = sqlDB.Close() },
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

func (s *Store) Close() {
	s.close()
}
