package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// poolConfig parses databaseURL and tags connections with applicationName
// unless the URL already names one.
func poolConfig(databaseURL, applicationName string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse core db config: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok && applicationName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if cfg.HealthCheckPeriod > 30*time.Second {
		cfg.HealthCheckPeriod = 30 * time.Second
	}
	return cfg, nil
}

// NewCorePool connects to the core database and pings it once.
func NewCorePool(ctx context.Context, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, applicationName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create core db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping core db: %w", err)
	}

	return pool, nil
}
