package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// RunMigrations applies every pending migration in fsys to the database and
// logs each one applied.
func RunMigrations(ctx context.Context, databaseURL string, fsys fs.FS, logger zerolog.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return migrate(ctx, db, fsys, logger)
}

func migrate(ctx context.Context, db *sql.DB, fsys fs.FS, logger zerolog.Logger) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	for _, r := range results {
		logger.Info().Int64("version", r.Source.Version).Dur("took", r.Duration).Msg("applied migration")
	}
	if len(results) == 0 {
		logger.Info().Msg("database schema up to date")
	}
	return nil
}
