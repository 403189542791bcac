package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	temporalclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/sitepublish/internal/api"
	"github.com/edvin/sitepublish/internal/config"
	"github.com/edvin/sitepublish/internal/core"
	"github.com/edvin/sitepublish/internal/db"
	"github.com/edvin/sitepublish/internal/logging"
	"github.com/edvin/sitepublish/internal/metrics"
	"github.com/edvin/sitepublish/migrations"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "create-api-key" {
		if err := createAPIKey(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "", "Migration files directory (default: migrations built into the binary)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(config.BinaryCoreAPI); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg, config.BinaryCoreAPI)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrateFlag {
		fsys := migrations.Core()
		if *migrateDirFlag != "" {
			fsys = os.DirFS(*migrateDirFlag)
		}
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(ctx, cfg.CoreDatabaseURL, fsys, logger); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, "sitepublish-"+config.BinaryCoreAPI)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPool("core", corePool)

	tc, err := dialTemporal(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	services := core.NewServices(corePool, tc, core.Settings{
		PlatformDomain: cfg.PlatformDomain,
		EdgeHostname:   cfg.EdgeHostname,
	})
	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      api.NewServer(logger, corePool, tc, services),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting core API server")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func dialTemporal(cfg *config.Config) (temporalclient.Client, error) {
	opts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		return nil, fmt.Errorf("temporal TLS: %w", err)
	}
	if tlsConfig != nil {
		opts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
	}
	return temporalclient.Dial(opts)
}
