package core

import (
	"context"
	"fmt"

	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/platform"
)

const tenantColumns = `id, name, slug, artifact_ref, created_at, updated_at`

type TenantService struct {
	db             DB
	platformDomain string
}

func NewTenantService(db DB, platformDomain string) *TenantService {
	return &TenantService{db: db, platformDomain: platformDomain}
}

// Create inserts the tenant together with its platform subdomain, which is
// born active and primary with a platform-managed certificate.
func (s *TenantService) Create(ctx context.Context, tenant *model.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = platform.NewID()
	}
	hostname := platform.SubdomainHostname(s.platformDomain, tenant.Slug)

	err := s.db.QueryRow(ctx,
		`WITH t AS (
			INSERT INTO tenants (id, name, slug, artifact_ref, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			RETURNING id, created_at, updated_at
		), d AS (
			INSERT INTO domains (id, tenant_id, hostname, type, status, ssl_status, is_primary, created_at, updated_at)
			SELECT $5, t.id, $6, $7, $8, $9, true, now(), now() FROM t
		)
		SELECT created_at, updated_at FROM t`,
		tenant.ID, tenant.Name, tenant.Slug, tenant.ArtifactRef,
		platform.NewID(), hostname, model.DomainTypePlatformSubdomain, model.DomainActive, model.SSLActive,
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return mapError("insert tenant", err)
	}
	return nil
}

func (s *TenantService) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.ArtifactRef, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapError(fmt.Sprintf("get tenant %s", id), err)
	}
	return &t, nil
}

func (s *TenantService) List(ctx context.Context, limit int, cursor string) ([]model.Tenant, bool, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants`
	args := []any{}
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` WHERE id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}
	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.ArtifactRef, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate tenants: %w", err)
	}

	hasMore := len(tenants) > limit
	if hasMore {
		tenants = tenants[:limit]
	}
	return tenants, hasMore, nil
}

// UpdateArtifact records the location of the tenant's latest generated site bundle.
func (s *TenantService) UpdateArtifact(ctx context.Context, id, artifactRef string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tenants SET artifact_ref = $1, updated_at = now() WHERE id = $2`, artifactRef, id,
	)
	if err != nil {
		return fmt.Errorf("update tenant %s artifact: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update tenant %s artifact: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes the tenant. Its domains, DNS records and deployment history
// go with it.
func (s *TenantService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tenant %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete tenant %s: %w", id, ErrNotFound)
	}
	return nil
}
