package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/sitepublish/internal/activity"
)

const sslRenewalWindowDays = 30

// StaleDeploymentWatchdogWorkflow is a cron workflow that fails deployments
// stuck in queued or building for longer than the publish timeout.
func StaleDeploymentWatchdogWorkflow(ctx workflow.Context) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	})

	var swept []string
	if err := workflow.ExecuteActivity(ctx, "SweepTimedOutDeployments").Get(ctx, &swept); err != nil {
		return fmt.Errorf("sweep stale deployments: %w", err)
	}
	if len(swept) > 0 {
		workflow.GetLogger(ctx).Warn("failed stale deployments", "count", len(swept), "deploymentIDs", swept)
	}
	return nil
}

// CheckSSLExpiryWorkflow runs daily and re-provisions certificates of custom
// domains that expire within 30 days.
func CheckSSLExpiryWorkflow(ctx workflow.Context) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	})

	var expiring []activity.ExpiringDomain
	if err := workflow.ExecuteActivity(ctx, "ListExpiringSSL", sslRenewalWindowDays).Get(ctx, &expiring); err != nil {
		return fmt.Errorf("list expiring certificates: %w", err)
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("found expiring certificates", "count", len(expiring))

	for _, d := range expiring {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: "renew-ssl-" + d.ID,
		})
		err := workflow.ExecuteChildWorkflow(childCtx, ProvisionSSLWorkflow, d.ID).Get(ctx, nil)
		if err != nil {
			// Continue renewing other domains even if one fails.
			logger.Error("failed to renew certificate", "domainID", d.ID, "hostname", d.Hostname, "error", err)
		}
	}
	return nil
}
