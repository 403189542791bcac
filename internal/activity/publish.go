package activity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/activity"

	"github.com/edvin/sitepublish/internal/metrics"
	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/pipeline"
)

const (
	defaultHeartbeatInterval = 20 * time.Second
	DefaultPublishTimeout    = 15 * time.Minute

	// SweepMargin is how long past its publish deadline a deployment may stay
	// in flight before the watchdog fails it. It covers the activity grace
	// period and the final status write.
	SweepMargin = 2 * time.Minute
)

// Publish runs the publish pipeline for a deployment.
type Publish struct {
	runner            *pipeline.Runner
	store             *CoreDB
	timeout           time.Duration
	logger            zerolog.Logger
	heartbeatInterval time.Duration
}

// NewPublish creates a new Publish activity struct. Step snapshots are
// written to store while the pipeline runs. A zero timeout selects
// DefaultPublishTimeout.
func NewPublish(runner *pipeline.Runner, store *CoreDB, timeout time.Duration, logger zerolog.Logger) *Publish {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Publish{
		runner:            runner,
		store:             store,
		timeout:           timeout,
		logger:            logger.With().Str("component", "publish").Logger(),
		heartbeatInterval: defaultHeartbeatInterval,
	}
}

// PublishPlan is what a publish workflow needs before running the pipeline.
// Deadline is the deployment's creation time plus Timeout, so time spent
// queued counts against the budget.
type PublishPlan struct {
	Config   pipeline.Config `json:"config"`
	Timeout  time.Duration   `json:"timeout"`
	Deadline time.Time       `json:"deadline"`
}

// PreparePublish loads the pipeline config of a deployment together with the
// time budget of the whole pipeline.
func (a *Publish) PreparePublish(ctx context.Context, deploymentID string) (*PublishPlan, error) {
	cfg, createdAt, err := a.store.LoadPublishConfig(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	return &PublishPlan{Config: *cfg, Timeout: a.timeout, Deadline: createdAt.Add(a.timeout)}, nil
}

// SweepTimedOutDeployments fails every deployment that is still in flight
// SweepMargin after its publish deadline. A pipeline never runs past that
// deadline, so a swept deployment has no build left to finish.
func (a *Publish) SweepTimedOutDeployments(ctx context.Context) ([]string, error) {
	ids, err := a.store.SweepStaleDeployments(ctx, a.timeout, a.timeout+SweepMargin)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		metrics.PublishTotal.WithLabelValues(metrics.ResultTimeout).Inc()
		a.logger.Warn().Str("deployment_id", id).Dur("timeout", a.timeout).Msg("swept stale deployment")
	}
	return ids, nil
}

// RunPublishPipelineParams holds the parameters for RunPublishPipeline.
type RunPublishPipelineParams struct {
	Config   pipeline.Config `json:"config"`
	Deadline time.Time       `json:"deadline"`
}

// RunPublishPipeline runs every pipeline step for the config before the
// deadline. The deadline is capped at the publish timeout from now. A failed
// pipeline is reported in the result, not as an error, so the workflow can
// finalise the deployment with the full step list.
func (a *Publish) RunPublishPipeline(ctx context.Context, params RunPublishPipelineParams) (*pipeline.Result, error) {
	cfg := params.Config
	logger := a.logger.With().Str("deployment_id", cfg.DeploymentID).Logger()

	deadline := time.Now().Add(a.timeout)
	if !params.Deadline.IsZero() && params.Deadline.Before(deadline) {
		deadline = params.Deadline
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var mu sync.Mutex
	current := pipeline.StepValidateConfig
	finished := make(map[string]bool)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(a.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				step := current
				mu.Unlock()
				activity.RecordHeartbeat(ctx, step)
			}
		}
	}()

	observe := func(steps []model.DeploymentStep) {
		mu.Lock()
		for _, s := range steps {
			switch s.Status {
			case model.StepInProgress:
				current = s.Name
			case model.StepCompleted, model.StepFailed:
				if !finished[s.Name] {
					finished[s.Name] = true
					metrics.ObserveStep(s.Name, s.Status, s.StartedAt, s.FinishedAt)
					logger.Info().Str("step", s.Name).Str("status", s.Status).Msg("pipeline step finished")
				}
			}
		}
		step := current
		mu.Unlock()

		activity.RecordHeartbeat(ctx, step)
		if err := a.store.UpdateDeploymentSteps(ctx, UpdateDeploymentStepsParams{ID: cfg.DeploymentID, Steps: steps}); err != nil {
			logger.Warn().Err(err).Msg("failed to store step snapshot")
		}
	}

	res := a.runner.Publish(ctx, cfg, observe)
	close(stop)
	wg.Wait()

	switch {
	case res.Success:
		metrics.PublishTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		logger.Info().Str("site_url", res.SiteURL).Int("warnings", len(res.Warnings)).Msg("publish succeeded")
	case res.TimedOut:
		metrics.PublishTotal.WithLabelValues(metrics.ResultTimeout).Inc()
		logger.Warn().Str("step", res.FailedStep).Msg("publish timed out")
	default:
		metrics.PublishTotal.WithLabelValues(metrics.ResultFailure).Inc()
		logger.Warn().Str("step", res.FailedStep).Str("error", res.Error).Msg("publish failed")
	}
	return &res, nil
}
