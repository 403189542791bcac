package core

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/platform"
)

const deploymentColumns = `id, tenant_id, version, status, site_url, commit_message, is_current, steps, warnings,
	error_message, build_id, created_at, updated_at, finished_at`

func scanDeployment(row pgx.Row) (*model.Deployment, error) {
	var d model.Deployment
	err := row.Scan(&d.ID, &d.TenantID, &d.Version, &d.Status, &d.SiteURL, &d.CommitMessage, &d.IsCurrent,
		&d.Steps, &d.Warnings, &d.ErrorMessage, &d.BuildID, &d.CreatedAt, &d.UpdatedAt, &d.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type DeploymentService struct {
	db DB
	tc temporalclient.Client
}

func NewDeploymentService(db DB, tc temporalclient.Client) *DeploymentService {
	return &DeploymentService{db: db, tc: tc}
}

// StartPublish records a new queued deployment with the tenant's next
// version and starts the publish workflow for it. A tenant with a publish
// already queued or building gets ErrConcurrencyConflict and no record is
// written. An empty commitMessage defaults to "Deploy v<version>".
//
// The version counter and the record are written by one statement, so a
// rejected publish never consumes a version.
func (s *DeploymentService) StartPublish(ctx context.Context, tenantID, commitMessage string) (*model.Deployment, error) {
	id := platform.NewID()

	d, err := scanDeployment(s.db.QueryRow(ctx,
		`WITH tenant AS (
			SELECT id FROM tenants WHERE id = $2
		), next AS (
			INSERT INTO deployment_counters (tenant_id, last_version)
			SELECT id, 1 FROM tenant
			ON CONFLICT (tenant_id) DO UPDATE SET last_version = deployment_counters.last_version + 1
			RETURNING last_version
		)
		INSERT INTO deployments (id, tenant_id, version, status, site_url, commit_message, is_current, steps, created_at, updated_at)
		SELECT $1, $2, next.last_version, $3,
			(SELECT 'https://' || hostname FROM domains WHERE tenant_id = $2 AND is_primary),
			COALESCE(NULLIF($4, ''), 'Deploy v' || next.last_version),
			false, '[]'::jsonb, now(), now()
		FROM next
		RETURNING `+deploymentColumns,
		id, tenantID, model.DeploymentQueued, commitMessage,
	))
	if err != nil {
		return nil, mapError(fmt.Sprintf("insert deployment for tenant %s", tenantID), err)
	}

	if err := startWorkflow(ctx, s.tc, "PublishSiteWorkflow", workflowID("publish", d.ID), d.ID); err != nil {
		msg := fmt.Sprintf("start publish workflow: %v", err)
		// Release the in-flight slot so the tenant can retry.
		if _, uerr := s.db.Exec(ctx,
			`UPDATE deployments SET status = $1, error_message = $2, finished_at = now(), updated_at = now()
			 WHERE id = $3 AND status = $4`,
			model.DeploymentError, msg, d.ID, model.DeploymentQueued,
		); uerr != nil {
			return nil, fmt.Errorf("start PublishSiteWorkflow: %w (mark failed: %v)", err, uerr)
		}
		return nil, fmt.Errorf("start PublishSiteWorkflow: %w", err)
	}
	return d, nil
}

// GetByID returns a deployment, including its step list.
func (s *DeploymentService) GetByID(ctx context.Context, id string) (*model.Deployment, error) {
	d, err := scanDeployment(s.db.QueryRow(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE id = $1`, id,
	))
	if err != nil {
		return nil, mapError(fmt.Sprintf("get deployment %s", id), err)
	}
	return d, nil
}

// GetCurrent returns the tenant's live deployment.
func (s *DeploymentService) GetCurrent(ctx context.Context, tenantID string) (*model.Deployment, error) {
	d, err := scanDeployment(s.db.QueryRow(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE tenant_id = $1 AND is_current`, tenantID,
	))
	if err != nil {
		return nil, mapError(fmt.Sprintf("get current deployment for tenant %s", tenantID), err)
	}
	return d, nil
}

// ListByTenant returns the tenant's deployments newest first. The cursor is
// the version of the last deployment of the previous page.
func (s *DeploymentService) ListByTenant(ctx context.Context, tenantID string, limit int, cursor string) ([]model.Deployment, bool, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if cursor != "" {
		version, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, false, fmt.Errorf("invalid cursor %q", cursor)
		}
		query += fmt.Sprintf(` AND version < $%d`, argIdx)
		args = append(args, version)
		argIdx++
	}
	query += ` ORDER BY version DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []model.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan deployment: %w", err)
		}
		deployments = append(deployments, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate deployments: %w", err)
	}

	hasMore := len(deployments) > limit
	if hasMore {
		deployments = deployments[:limit]
	}
	return deployments, hasMore, nil
}
