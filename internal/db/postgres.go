package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// pgMigrations run in order on every startup and must stay idempotent.
var pgMigrations = []string{
	`CREATE TABLE IF NOT EXISTS appointments (
		id                UUID        PRIMARY KEY,
		full_name         TEXT        NOT NULL,
		primary_contact   TEXT        NOT NULL,
		secondary_contact TEXT        NOT NULL DEFAULT '',
		address           TEXT        NOT NULL,
		city              TEXT        NOT NULL DEFAULT 'Buritis',
		notes             TEXT        NOT NULL DEFAULT '',
		is_priority       BOOLEAN     NOT NULL DEFAULT false,
		status            TEXT        NOT NULL CHECK (status IN ('waiting', 'confirmed', 'archived')),
		scheduled_at      TIMESTAMPTZ,
		attendance        TEXT        NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL,
		CHECK (status <> 'waiting' OR scheduled_at IS NULL),
		CHECK (status <> 'confirmed' OR scheduled_at IS NOT NULL)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_confirmed_slot
		ON appointments (scheduled_at) WHERE status = 'confirmed'`,
	`CREATE INDEX IF NOT EXISTS appointments_status_created
		ON appointments (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id             BIGSERIAL   PRIMARY KEY,
		event_type     TEXT        NOT NULL,
		appointment_id UUID,
		actor          TEXT        NOT NULL DEFAULT '',
		payload        JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE appointments ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 0`,
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT    PRIMARY KEY,
		value INTEGER NOT NULL CHECK (value >= 0)
	)`,
}

// MigratePostgres creates the schema if it does not exist.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for i, m := range pgMigrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
