// Package bootstrap opens the configured storage backend and assembles the
// appointment service for the binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
	"github.com/hackgods/gaci-appointment-queue/internal/config"
	"github.com/hackgods/gaci-appointment-queue/internal/db"
	redisclient "github.com/hackgods/gaci-appointment-queue/internal/redis"
)

type Backend struct {
	Repo     appointment.Repository
	Settings appointment.Settings
	Locker   redisclient.Locker
	Checks   map[string]func(ctx context.Context) error

	closers []func()
	log     zerolog.Logger
}

// Open connects whatever cfg selects. On error everything opened so far is
// closed again.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Backend, error) {
	b := &Backend{
		Checks: make(map[string]func(ctx context.Context) error),
		log:    log,
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		var err error
		rdb, err = redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		b.closers = append(b.closers, func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		})
		b.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	if err := b.openStore(ctx, cfg, rdb); err != nil {
		b.Close()
		return nil, err
	}

	if cfg.LockBackend == config.LockRedis {
		b.Locker = redisclient.NewRedisLocker(rdb, cfg.RedisKeyPrefix, cfg.LockTTL)
	} else {
		b.Locker = redisclient.NewLocalLocker()
	}

	return b, nil
}

func (b *Backend) openStore(ctx context.Context, cfg config.Config, rdb *redis.Client) error {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := openPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, pool.Close)
		b.Checks["postgres"] = pool.Ping
		b.Repo = appointment.NewPgRepository(pool)
		b.Settings = appointment.NewPgSettings(pool, cfg.DefaultDailyLimit)
		b.log.Info().Msg("connected to Postgres")

	case config.BackendRedis:
		store := redisclient.NewStore(rdb, cfg.RedisKeyPrefix)
		b.Repo = appointment.NewKVRepository(store)
		b.Settings = appointment.NewKVSettings(store, cfg.DefaultDailyLimit)

	case config.BackendSQLite:
		conn, err := openSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() {
			if err := conn.Close(); err != nil {
				b.log.Error().Err(err).Msg("error closing sqlite")
			}
		})
		store := db.NewSQLiteStore(conn)
		b.Checks["sqlite"] = store.Ping
		b.Repo = appointment.NewKVRepository(store)
		b.Settings = appointment.NewKVSettings(store, cfg.DefaultDailyLimit)
		b.log.Info().Msg("opened SQLite store")

	default:
		b.Repo = appointment.NewMemoryRepository()
		b.Settings = appointment.NewMemorySettings(cfg.DefaultDailyLimit)
		b.log.Warn().Msg("using in-memory store, data is lost on exit")
	}
	return nil
}

func openPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}
	if err := db.MigratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return pool, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		var err error
		path, err = db.DefaultSQLitePath()
		if err != nil {
			return nil, err
		}
	}
	return db.OpenSQLite(path)
}

// Service builds the appointment service on top of the backend.
func (b *Backend) Service(cfg config.Config) *appointment.Service {
	return appointment.NewService(b.Repo, b.Settings, b.Locker,
		appointment.WithLocation(cfg.Location),
		appointment.WithLogger(b.log.With().Str("component", "appointment").Logger()),
	)
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
