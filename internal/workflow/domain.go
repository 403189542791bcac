package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/sitepublish/internal/activity"
	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/pipeline"
	"github.com/edvin/sitepublish/internal/provider/cloudflare"
	"github.com/edvin/sitepublish/internal/verify"
)

const (
	sslPollAttempts = 12
	sslPollInterval = 10 * time.Second

	sslStatusActive = "active"
)

// VerifyDomainWorkflow resolves the expected DNS records of a domain that was
// moved to verifying, stores the per-record diff together with the resulting
// status, and starts certificate provisioning once every record matches.
func VerifyDomainWorkflow(ctx workflow.Context, domainID string) error {
	ctx = workflow.WithActivityOptions(ctx, dbActivityOptions)
	logger := workflow.GetLogger(ctx)

	var dctx activity.DomainContext
	err := workflow.ExecuteActivity(ctx, "GetDomainContext", domainID).Get(ctx, &dctx)
	if err != nil {
		_ = setResourceFailed(ctx, "domains", domainID, err)
		return err
	}

	checkCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	})
	var res verify.Result
	err = workflow.ExecuteActivity(checkCtx, "CheckDomainRecords", activity.CheckDomainRecordsParams{
		Hostname: dctx.Domain.Hostname,
		Records:  dctx.Records,
	}).Get(ctx, &res)
	if err != nil {
		_ = setResourceFailed(ctx, "domains", domainID, err)
		return err
	}

	status, sslStatus := verify.Outcome(res, dctx.Domain.SSLStatus)

	var msg *string
	if summary := res.Summary(); summary != "" {
		msg = &summary
	} else if status == model.DomainFailed {
		none := "no DNS records to verify"
		msg = &none
	}

	records := make([]model.DNSRecord, len(res.Records))
	for i, r := range res.Records {
		records[i] = r.DNSRecord
	}
	err = workflow.ExecuteActivity(ctx, "SaveVerificationResult", activity.SaveVerificationResultParams{
		DomainID:      domainID,
		Status:        status,
		SSLStatus:     sslStatus,
		StatusMessage: msg,
		Records:       records,
	}).Get(ctx, nil)
	if err != nil {
		_ = setResourceFailed(ctx, "domains", domainID, err)
		return err
	}

	if status != model.DomainActive {
		logger.Info("domain verification failed", "domainID", domainID, "hostname", dctx.Domain.Hostname,
			"mismatches", len(res.Mismatches()))
		return nil
	}

	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: "provision-ssl-" + domainID,
	})
	err = workflow.ExecuteChildWorkflow(childCtx, ProvisionSSLWorkflow, domainID).Get(ctx, nil)
	if err != nil {
		// The domain stays active; only its certificate status reflects the failure.
		logger.Warn("ssl provisioning failed", "domainID", domainID, "error", err)
	}
	return nil
}

// ProvisionSSLWorkflow sets up the provider zone of an active custom domain,
// enables full TLS and waits for the provider to issue the certificate.
func ProvisionSSLWorkflow(ctx workflow.Context, domainID string) error {
	ctx = workflow.WithActivityOptions(ctx, dbActivityOptions)

	var dctx activity.DomainContext
	if err := workflow.ExecuteActivity(ctx, "GetDomainContext", domainID).Get(ctx, &dctx); err != nil {
		return err
	}
	if dctx.Domain.Status != model.DomainActive {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("domain %s is %s, not active", dctx.Domain.Hostname, dctx.Domain.Status), "DOMAIN_NOT_ACTIVE", nil)
	}

	err := workflow.ExecuteActivity(ctx, "UpdateSSLStatus", activity.UpdateSSLStatusParams{
		DomainID:  domainID,
		SSLStatus: model.SSLProvisioning,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	provCtx := providerActivityCtx(ctx)

	var zone cloudflare.Zone
	if err := workflow.ExecuteActivity(provCtx, "EnsureZone", dctx.Domain.Hostname).Get(ctx, &zone); err != nil {
		return setSSLFailed(ctx, domainID, err)
	}
	err = workflow.ExecuteActivity(ctx, "UpdateSSLStatus", activity.UpdateSSLStatusParams{
		DomainID:  domainID,
		SSLStatus: model.SSLProvisioning,
		ZoneID:    &zone.ID,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	if err := workflow.ExecuteActivity(provCtx, "ConfigureTLS", zone.ID).Get(ctx, nil); err != nil {
		return setSSLFailed(ctx, domainID, err)
	}

	for attempt := 1; attempt <= sslPollAttempts; attempt++ {
		var status cloudflare.SSLStatus
		if err := workflow.ExecuteActivity(provCtx, "GetSSLStatus", zone.ID).Get(ctx, &status); err != nil {
			return setSSLFailed(ctx, domainID, err)
		}
		if status.Status == sslStatusActive {
			return workflow.ExecuteActivity(ctx, "UpdateSSLStatus", activity.UpdateSSLStatusParams{
				DomainID:  domainID,
				SSLStatus: model.SSLActive,
				ExpiresAt: status.ExpiresOn,
			}).Get(ctx, nil)
		}
		if attempt < sslPollAttempts {
			if err := workflow.Sleep(ctx, sslPollInterval); err != nil {
				return err
			}
		}
	}

	return setSSLFailed(ctx, domainID, &pipeline.TimeoutError{
		Op:    "certificate issuance",
		After: sslPollAttempts * sslPollInterval,
	})
}
