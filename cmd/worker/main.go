package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/sitepublish/internal/activity"
	"github.com/edvin/sitepublish/internal/artifact"
	"github.com/edvin/sitepublish/internal/config"
	"github.com/edvin/sitepublish/internal/core"
	"github.com/edvin/sitepublish/internal/db"
	"github.com/edvin/sitepublish/internal/logging"
	"github.com/edvin/sitepublish/internal/metrics"
	"github.com/edvin/sitepublish/internal/pipeline"
	"github.com/edvin/sitepublish/internal/provider/cloudflare"
	"github.com/edvin/sitepublish/internal/provider/github"
	"github.com/edvin/sitepublish/internal/provider/sitecheck"
	"github.com/edvin/sitepublish/internal/provider/vercel"
	"github.com/edvin/sitepublish/internal/verify"
	"github.com/edvin/sitepublish/internal/workflow"
)

const siteCheckTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(config.BinaryWorker); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg, config.BinaryWorker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, "sitepublish-"+config.BinaryWorker)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPool("core", corePool)

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	// Provider clients
	gh, err := github.NewClient("", cfg.GitHubToken, cfg.GitHubOrg, cfg.GitHubTemplateRepo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create github client")
	}
	vc := vercel.NewClient("", cfg.VercelToken, cfg.VercelTeamID, cfg.GitHubOrg, logger)
	cf, err := cloudflare.NewClient(cfg.CloudflareAPIToken, cfg.CloudflareAccountID, cloudflare.Options{}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create cloudflare client")
	}
	s3Client := artifact.NewS3Client(artifact.S3Options{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})

	runner := pipeline.NewRunner(pipeline.Collaborators{
		Repos:     gh,
		Artifacts: artifact.NewPublisher(s3Client, cfg.ArtifactBucket, gh, logger),
		Hosting:   vc,
		DNS:       cloudflare.NewDNSProvider(cf),
		Sites:     sitecheck.NewChecker(siteCheckTimeout),
	}, cfg.BuildPollInterval)

	w := worker.New(tc, core.TaskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{&workflow.ErrorTypingInterceptor{}},
	})

	// Register activities
	coreDBActivities := activity.NewCoreDB(corePool)
	w.RegisterActivity(coreDBActivities)

	publishActivities := activity.NewPublish(runner, coreDBActivities, cfg.PublishTimeout, logger)
	w.RegisterActivity(publishActivities)

	sslActivities := activity.NewSSL(cf)
	w.RegisterActivity(sslActivities)

	domainCheckActivities := activity.NewDomainCheck(verify.NewChecker(nil))
	w.RegisterActivity(domainCheckActivities)

	// Register workflows
	w.RegisterWorkflow(workflow.PublishSiteWorkflow)
	w.RegisterWorkflow(workflow.VerifyDomainWorkflow)
	w.RegisterWorkflow(workflow.ProvisionSSLWorkflow)
	w.RegisterWorkflow(workflow.StaleDeploymentWatchdogWorkflow)
	w.RegisterWorkflow(workflow.CheckSSLExpiryWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr, corePool.Ping)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", core.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Register cron schedules. Errors for already-existing schedules are
	// ignored so that re-deploys do not fail.
	registerCronSchedules(ctx, tc, core.TaskQueue, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
	args     []interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, taskQueue string, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "stale-deployment-watchdog",
			cron:     "*/5 * * * *",
			workflow: workflow.StaleDeploymentWatchdogWorkflow,
		},
		{
			id:       "ssl-expiry-check",
			cron:     "0 3 * * *",
			workflow: workflow.CheckSSLExpiryWorkflow,
		},
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				Args:      s.args,
				TaskQueue: taskQueue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}
