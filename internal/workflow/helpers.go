package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/sitepublish/internal/activity"
	"github.com/edvin/sitepublish/internal/model"
)

// dbActivityOptions are used for activities that only touch the core DB.
var dbActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Second,
	RetryPolicy: &temporal.RetryPolicy{
		MaximumAttempts:    3,
		InitialInterval:    1 * time.Second,
		MaximumInterval:    10 * time.Second,
		BackoffCoefficient: 2.0,
	},
}

// providerActivityCtx returns a workflow context for activities that call an
// external provider API. Permanent provider errors are non-retryable, so the
// retry budget only covers transient failures.
func providerActivityCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    5,
			InitialInterval:    2 * time.Second,
			MaximumInterval:    30 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
}

// setResourceFailed is a helper to set a resource status to failed with an error message.
// It returns any error but callers typically ignore it since the primary
// error is more important.
func setResourceFailed(ctx workflow.Context, table string, id string, err error) error {
	msg := err.Error()
	return workflow.ExecuteActivity(ctx, "UpdateResourceStatus", activity.UpdateResourceStatusParams{
		Table:         table,
		ID:            id,
		Status:        model.DomainFailed,
		StatusMessage: &msg,
	}).Get(ctx, nil)
}

// markDeploymentFailed finalises a deployment as failed. A failure to do so is
// only logged; the watchdog sweeps the record later.
func markDeploymentFailed(ctx workflow.Context, params activity.MarkDeploymentFailedParams) {
	err := workflow.ExecuteActivity(ctx, "MarkDeploymentFailed", params).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Error("failed to mark deployment failed", "deploymentID", params.ID, "error", err)
	}
}

// setSSLFailed marks a domain's certificate as failed and returns cause.
func setSSLFailed(ctx workflow.Context, domainID string, cause error) error {
	msg := cause.Error()
	err := workflow.ExecuteActivity(ctx, "UpdateSSLStatus", activity.UpdateSSLStatusParams{
		DomainID:      domainID,
		SSLStatus:     model.SSLFailed,
		StatusMessage: &msg,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Error("failed to mark ssl failed", "domainID", domainID, "error", err)
	}
	return cause
}
