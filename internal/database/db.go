package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/truco/internal/config"
	"github.com/sirupsen/logrus"
)

var DB *pgxpool.Pool

// Store runs every query of the service against one connection pool.
type Store struct {
	db Conn
}

// NewStore wraps db. Pass DB once ConnectDB has succeeded.
func NewStore(db Conn) *Store {
	return &Store{db: db}
}

// Conn is the part of a pgx pool the stores need. *pgxpool.Pool satisfies it.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// connString builds the DSN from POSTGRES_USER, POSTGRES_PASSWORD, PG_HOST,
// PG_PORT and PG_DATABASE.
func connString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		config.GetEnv("POSTGRES_USER", "postgres"),
		config.GetEnv("POSTGRES_PASSWORD", ""),
		config.GetEnv("PG_HOST", "localhost"),
		config.GetEnv("PG_PORT", "5432"),
		config.GetEnv("PG_DATABASE", "truco"),
	)
}

// ConnectDB opens the global pool and makes sure the schema exists.
func ConnectDB(ctx context.Context, logger *logrus.Logger) error {
	cfg, err := pgxpool.ParseConfig(connString())
	if err != nil {
		return fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("db ping error: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	DB = pool
	logger.WithFields(logrus.Fields{
		"host":     cfg.ConnConfig.Host,
		"database": cfg.ConnConfig.Database,
	}).Info("connected to database")
	return nil
}
