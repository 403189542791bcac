//go:build integration

package core_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalmocks "go.temporal.io/sdk/mocks"

	"github.com/edvin/sitepublish/internal/activity"
	"github.com/edvin/sitepublish/internal/core"
	"github.com/edvin/sitepublish/internal/db"
	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/migrations"
)

// Run with: DATABASE_URL=postgres://... go test -tags integration ./internal/core/

func migratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, db.RunMigrations(ctx, url, migrations.Core(), zerolog.Nop()))

	pool, err := db.NewCorePool(ctx, url, "sitepublish-integration")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createTenant(t *testing.T, pool *pgxpool.Pool) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{Name: "Acme Motors", Slug: fmt.Sprintf("acme-%d", time.Now().UnixNano())}
	require.NoError(t, core.NewTenantService(pool, "sites.example.com").Create(context.Background(), tenant))
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM tenants WHERE id = $1`, tenant.ID)
	})
	return tenant
}

func temporalAccepting() *temporalmocks.Client {
	tc := &temporalmocks.Client{}
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&temporalmocks.WorkflowRun{}, nil)
	return tc
}

func TestPostgres_PublishVersionsAndCurrentFlip(t *testing.T) {
	pool := migratedPool(t)
	ctx := context.Background()
	tenant := createTenant(t, pool)
	deployments := core.NewDeploymentService(pool, temporalAccepting())
	coreDB := activity.NewCoreDB(pool)

	publish := func() *model.Deployment {
		d, err := deployments.StartPublish(ctx, tenant.ID, "")
		require.NoError(t, err)
		require.NoError(t, coreDB.MarkDeploymentBuilding(ctx, d.ID))
		return d
	}

	first := publish()
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, "Deploy v1", first.CommitMessage)
	require.NotNil(t, first.SiteURL)
	assert.Equal(t, "https://"+tenant.Slug+".sites.example.com", *first.SiteURL)

	// A second publish while the first is building is rejected and does
	// not consume a version.
	_, err := deployments.StartPublish(ctx, tenant.ID, "again")
	assert.ErrorIs(t, err, core.ErrConcurrencyConflict)

	require.NoError(t, coreDB.MarkDeploymentReady(ctx, activity.MarkDeploymentReadyParams{
		ID: first.ID, SiteURL: *first.SiteURL, BuildID: "build-1",
	}))

	second := publish()
	assert.Equal(t, 2, second.Version)

	require.NoError(t, coreDB.MarkDeploymentReady(ctx, activity.MarkDeploymentReadyParams{
		ID: second.ID, SiteURL: *second.SiteURL, BuildID: "build-2",
	}))

	current, err := deployments.GetCurrent(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	prev, err := deployments.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, prev.IsCurrent)
	assert.Equal(t, model.DeploymentReady, prev.Status)
}

func TestPostgres_ConnectCustomAndPrimary(t *testing.T) {
	pool := migratedPool(t)
	ctx := context.Background()
	tenant := createTenant(t, pool)
	domains := core.NewDomainService(pool, nil, "cname.vercel-dns.com")

	host := tenant.Slug + ".example.org"
	custom, records, err := domains.ConnectCustom(ctx, tenant.ID, host+".")
	require.NoError(t, err)
	assert.Equal(t, host, custom.Hostname)
	assert.Equal(t, model.DomainPending, custom.Status)

	groups := map[string]int{}
	var txt int
	for _, r := range records {
		groups[r.Group]++
		if r.Type == "TXT" {
			txt++
			assert.Contains(t, r.Expected, "sitepublish-verify=")
		}
	}
	assert.Equal(t, 2, groups["apex"])
	assert.Equal(t, 1, txt)

	_, err = domains.SetPrimary(ctx, custom.ID)
	assert.ErrorIs(t, err, core.ErrDomainNotActive)

	_, err = pool.Exec(ctx, `UPDATE domains SET status = 'active' WHERE id = $1`, custom.ID)
	require.NoError(t, err)

	primary, err := domains.SetPrimary(ctx, custom.ID)
	require.NoError(t, err)
	assert.True(t, primary.IsPrimary)

	all, err := domains.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	var primaries int
	for _, d := range all {
		if d.IsPrimary {
			primaries++
			assert.Equal(t, custom.ID, d.ID)
		}
	}
	assert.Equal(t, 1, primaries)

	// Setting a second primary without clearing the first violates the
	// exclusion constraint.
	_, err = pool.Exec(ctx,
		`UPDATE domains SET is_primary = true WHERE tenant_id = $1 AND NOT is_primary`, tenant.ID)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr), "got %v", err)
	assert.Equal(t, "domains_one_primary", pgErr.ConstraintName)

	// Hostnames are unique across tenants.
	other := createTenant(t, pool)
	_, _, err = domains.ConnectCustom(ctx, other.ID, host)
	assert.ErrorIs(t, err, core.ErrConflict)
}
