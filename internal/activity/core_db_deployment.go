package activity

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/pipeline"
)

// LoadPublishConfig assembles the immutable pipeline config for a deployment
// from the deployment row, its tenant and the tenant's active domains, and
// returns it with the deployment's creation time. Missing tenant data is left
// empty so the pipeline's validation step can report it.
func (a *CoreDB) LoadPublishConfig(ctx context.Context, deploymentID string) (*pipeline.Config, time.Time, error) {
	cfg := pipeline.Config{DeploymentID: deploymentID}
	var artifactRef *string
	var createdAt time.Time
	err := a.db.QueryRow(ctx,
		`SELECT d.tenant_id, d.version, d.commit_message, t.slug, t.artifact_ref, d.created_at
		 FROM deployments d JOIN tenants t ON t.id = d.tenant_id
		 WHERE d.id = $1`, deploymentID,
	).Scan(&cfg.TenantID, &cfg.Version, &cfg.CommitMessage, &cfg.TenantSlug, &artifactRef, &createdAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("get deployment %s: %w", deploymentID, err)
	}
	if artifactRef != nil {
		cfg.ArtifactRef = *artifactRef
	}

	rows, err := a.db.Query(ctx,
		`SELECT id, hostname, type, is_primary FROM domains
		 WHERE tenant_id = $1 AND status = $2
		 ORDER BY is_primary DESC, hostname`,
		cfg.TenantID, model.DomainActive,
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("list active domains: %w", err)
	}
	defer rows.Close()

	var primary model.Domain
	for rows.Next() {
		var d model.Domain
		if err := rows.Scan(&d.ID, &d.Hostname, &d.Type, &d.IsPrimary); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan domain: %w", err)
		}
		if d.IsPrimary {
			primary = d
		}
		cfg.Hostnames = append(cfg.Hostnames, d.Hostname)
		if d.Type == model.DomainTypeCustom {
			cfg.Hostnames = append(cfg.Hostnames, "www."+d.Hostname)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate domains: %w", err)
	}

	cfg.PrimaryHostname = primary.Hostname
	cfg.Route = model.RouteSubdomain
	if primary.Type != "" && primary.Type != model.DomainTypePlatformSubdomain {
		cfg.Route = model.RouteCustom
		records, err := a.expectedRecords(ctx, primary.ID)
		if err != nil {
			return nil, time.Time{}, err
		}
		cfg.DNSRecords = records
	}
	return &cfg, createdAt, nil
}

func (a *CoreDB) expectedRecords(ctx context.Context, domainID string) ([]pipeline.DNSRecord, error) {
	rows, err := a.db.Query(ctx,
		`SELECT type, name, expected, ttl, record_group FROM domain_dns_records WHERE domain_id = $1 ORDER BY type, name`, domainID,
	)
	if err != nil {
		return nil, fmt.Errorf("list dns records: %w", err)
	}
	defer rows.Close()

	var records []pipeline.DNSRecord
	for rows.Next() {
		var r pipeline.DNSRecord
		if err := rows.Scan(&r.Type, &r.Name, &r.Content, &r.TTL, &r.Group); err != nil {
			return nil, fmt.Errorf("scan dns record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MarkDeploymentBuilding moves a queued deployment to building.
func (a *CoreDB) MarkDeploymentBuilding(ctx context.Context, deploymentID string) error {
	tag, err := a.db.Exec(ctx,
		`UPDATE deployments SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		model.DeploymentBuilding, deploymentID, model.DeploymentQueued,
	)
	if err != nil {
		return fmt.Errorf("mark deployment %s building: %w", deploymentID, err)
	}
	if tag.RowsAffected() == 0 {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("deployment %s is not queued", deploymentID), "DEPLOYMENT_NOT_QUEUED", nil)
	}
	return nil
}

// UpdateDeploymentStepsParams holds the parameters for UpdateDeploymentSteps.
type UpdateDeploymentStepsParams struct {
	ID    string
	Steps []model.DeploymentStep
}

// UpdateDeploymentSteps stores the latest step snapshot of an in-flight deployment.
func (a *CoreDB) UpdateDeploymentSteps(ctx context.Context, params UpdateDeploymentStepsParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE deployments SET steps = $1::jsonb, updated_at = now() WHERE id = $2 AND status IN ($3, $4)`,
		params.Steps, params.ID, model.DeploymentQueued, model.DeploymentBuilding,
	)
	if err != nil {
		return fmt.Errorf("update deployment %s steps: %w", params.ID, err)
	}
	return nil
}

// MarkDeploymentReadyParams holds the parameters for MarkDeploymentReady.
type MarkDeploymentReadyParams struct {
	ID       string
	SiteURL  string
	BuildID  string
	Steps    []model.DeploymentStep
	Warnings []string
}

// MarkDeploymentReady finalises a successful deployment and makes it the
// tenant's current one. The previous current deployment is cleared by the
// same statement.
func (a *CoreDB) MarkDeploymentReady(ctx context.Context, params MarkDeploymentReadyParams) error {
	tag, err := a.db.Exec(ctx,
		`WITH target AS (
			SELECT id, tenant_id FROM deployments WHERE id = $1 AND status IN ($2, $3)
		)
		UPDATE deployments d SET
			status      = CASE WHEN d.id = t.id THEN $4 ELSE d.status END,
			is_current  = (d.id = t.id),
			site_url    = CASE WHEN d.id = t.id THEN $5 ELSE d.site_url END,
			build_id    = CASE WHEN d.id = t.id THEN $6 ELSE d.build_id END,
			steps       = CASE WHEN d.id = t.id THEN $7::jsonb ELSE d.steps END,
			warnings    = CASE WHEN d.id = t.id THEN $8::text[] ELSE d.warnings END,
			finished_at = CASE WHEN d.id = t.id THEN now() ELSE d.finished_at END,
			updated_at  = now()
		FROM target t
		WHERE d.tenant_id = t.tenant_id AND (d.id = t.id OR d.is_current)`,
		params.ID, model.DeploymentQueued, model.DeploymentBuilding,
		model.DeploymentReady, params.SiteURL, params.BuildID, params.Steps, params.Warnings,
	)
	if err != nil {
		return fmt.Errorf("mark deployment %s ready: %w", params.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("deployment %s is no longer in flight", params.ID), "DEPLOYMENT_NOT_IN_FLIGHT", nil)
	}
	return nil
}

// MarkDeploymentFailedParams holds the parameters for MarkDeploymentFailed.
type MarkDeploymentFailedParams struct {
	ID       string
	Message  string
	Steps    []model.DeploymentStep
	Warnings []string
}

// MarkDeploymentFailed finalises a failed deployment. The tenant's current
// deployment is not touched. A deployment that already reached a terminal
// status is left as it is.
func (a *CoreDB) MarkDeploymentFailed(ctx context.Context, params MarkDeploymentFailedParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE deployments SET
			status = $1,
			error_message = $2,
			steps = COALESCE($3::jsonb, steps),
			warnings = COALESCE($4::text[], warnings),
			finished_at = now(),
			updated_at = now()
		 WHERE id = $5 AND status IN ($6, $7)`,
		model.DeploymentError, params.Message, params.Steps, params.Warnings,
		params.ID, model.DeploymentQueued, model.DeploymentBuilding,
	)
	if err != nil {
		return fmt.Errorf("mark deployment %s failed: %w", params.ID, err)
	}
	return nil
}

// SweepStaleDeployments fails every deployment that has been queued or
// building for longer than olderThan and returns their IDs. The stored
// message names timeout, the publish budget the deployment overran.
func (a *CoreDB) SweepStaleDeployments(ctx context.Context, timeout, olderThan time.Duration) ([]string, error) {
	msg := (&pipeline.TimeoutError{Op: "publish", After: timeout}).Error()
	rows, err := a.db.Query(ctx,
		`UPDATE deployments SET status = $1, error_message = $2, finished_at = now(), updated_at = now()
		 WHERE status IN ($3, $4) AND created_at < $5
		 RETURNING id`,
		model.DeploymentError, msg, model.DeploymentQueued, model.DeploymentBuilding, time.Now().Add(-olderThan),
	)
	if err != nil {
		return nil, fmt.Errorf("sweep stale deployments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deployment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
