package workflow

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/sitepublish/internal/activity"
	"github.com/edvin/sitepublish/internal/pipeline"
)

const (
	publishHeartbeatTimeout = time.Minute
	// publishGracePeriod lets the pipeline report its own timeout before
	// Temporal gives up on the activity.
	publishGracePeriod = 30 * time.Second
)

// PublishSiteWorkflow runs the publish pipeline for a queued deployment and
// finalises the deployment record as ready or error.
func PublishSiteWorkflow(ctx workflow.Context, deploymentID string) error {
	ctx = workflow.WithActivityOptions(ctx, dbActivityOptions)
	logger := workflow.GetLogger(ctx)

	if err := workflow.ExecuteActivity(ctx, "MarkDeploymentBuilding", deploymentID).Get(ctx, nil); err != nil {
		return err
	}

	var plan activity.PublishPlan
	if err := workflow.ExecuteActivity(ctx, "PreparePublish", deploymentID).Get(ctx, &plan); err != nil {
		markDeploymentFailed(ctx, activity.MarkDeploymentFailedParams{ID: deploymentID, Message: err.Error()})
		return err
	}

	// The pipeline is not idempotent at the provider side, so it runs once.
	pipelineCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: plan.Timeout + publishGracePeriod,
		HeartbeatTimeout:    publishHeartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var res pipeline.Result
	err := workflow.ExecuteActivity(pipelineCtx, "RunPublishPipeline", activity.RunPublishPipelineParams{
		Config:   plan.Config,
		Deadline: plan.Deadline,
	}).Get(ctx, &res)
	if err != nil {
		msg := err.Error()
		var timeoutErr *temporal.TimeoutError
		if errors.As(err, &timeoutErr) {
			msg = (&pipeline.TimeoutError{Op: "publish", After: plan.Timeout}).Error()
		}
		markDeploymentFailed(ctx, activity.MarkDeploymentFailedParams{ID: deploymentID, Message: msg})
		return temporal.NewNonRetryableApplicationError(msg, "PUBLISH_FAILED", err)
	}

	if !res.Success {
		logger.Warn("publish failed", "deploymentID", deploymentID, "step", res.FailedStep, "error", res.Error)
		markDeploymentFailed(ctx, activity.MarkDeploymentFailedParams{
			ID:       deploymentID,
			Message:  res.Error,
			Steps:    res.Steps,
			Warnings: res.Warnings,
		})
		return temporal.NewNonRetryableApplicationError(res.Error, "PUBLISH_FAILED", nil)
	}

	err = workflow.ExecuteActivity(ctx, "MarkDeploymentReady", activity.MarkDeploymentReadyParams{
		ID:       deploymentID,
		SiteURL:  res.SiteURL,
		BuildID:  res.BuildID,
		Steps:    res.Steps,
		Warnings: res.Warnings,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	logger.Info("deployment ready", "deploymentID", deploymentID, "siteURL", res.SiteURL, "version", plan.Config.Version)
	return nil
}
