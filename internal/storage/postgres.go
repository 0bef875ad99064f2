package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/abduss/grimoire/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultDBTimeout      = 5 * time.Second
	applicationName       = "grimoire-api"
	poolHealthCheckPeriod = 30 * time.Second
	poolMaxConnIdleTime   = 5 * time.Minute
)

// NewPostgresPool connects the user store to PostgreSQL and verifies the
// connection with a ping.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool for %s: %w", cfg.Database, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return pool, nil
}

// poolConfig tags connections with the application name so they can be told
// apart in pg_stat_activity.
func poolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.HealthCheckPeriod = poolHealthCheckPeriod
	poolCfg.MaxConnIdleTime = poolMaxConnIdleTime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	return poolCfg, nil
}
