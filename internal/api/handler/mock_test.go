package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/sitepublish/internal/model"
)

type mockTenants struct {
	mock.Mock
}

func (m *mockTenants) Create(ctx context.Context, tenant *model.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *mockTenants) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*model.Tenant)
	return t, args.Error(1)
}

func (m *mockTenants) List(ctx context.Context, limit int, cursor string) ([]model.Tenant, bool, error) {
	args := m.Called(ctx, limit, cursor)
	tenants, _ := args.Get(0).([]model.Tenant)
	return tenants, args.Bool(1), args.Error(2)
}

func (m *mockTenants) UpdateArtifact(ctx context.Context, id, artifactRef string) error {
	args := m.Called(ctx, id, artifactRef)
	return args.Error(0)
}

func (m *mockTenants) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockDeployments struct {
	mock.Mock
}

func (m *mockDeployments) StartPublish(ctx context.Context, tenantID, commitMessage string) (*model.Deployment, error) {
	args := m.Called(ctx, tenantID, commitMessage)
	d, _ := args.Get(0).(*model.Deployment)
	return d, args.Error(1)
}

func (m *mockDeployments) GetByID(ctx context.Context, id string) (*model.Deployment, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*model.Deployment)
	return d, args.Error(1)
}

func (m *mockDeployments) GetCurrent(ctx context.Context, tenantID string) (*model.Deployment, error) {
	args := m.Called(ctx, tenantID)
	d, _ := args.Get(0).(*model.Deployment)
	return d, args.Error(1)
}

func (m *mockDeployments) ListByTenant(ctx context.Context, tenantID string, limit int, cursor string) ([]model.Deployment, bool, error) {
	args := m.Called(ctx, tenantID, limit, cursor)
	ds, _ := args.Get(0).([]model.Deployment)
	return ds, args.Bool(1), args.Error(2)
}

type mockDomains struct {
	mock.Mock
}

func (m *mockDomains) ConnectCustom(ctx context.Context, tenantID, hostname string) (*model.Domain, []model.DNSRecord, error) {
	args := m.Called(ctx, tenantID, hostname)
	d, _ := args.Get(0).(*model.Domain)
	records, _ := args.Get(1).([]model.DNSRecord)
	return d, records, args.Error(2)
}

func (m *mockDomains) GetByID(ctx context.Context, id string) (*model.Domain, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*model.Domain)
	return d, args.Error(1)
}

func (m *mockDomains) ListByTenant(ctx context.Context, tenantID string) ([]model.Domain, error) {
	args := m.Called(ctx, tenantID)
	ds, _ := args.Get(0).([]model.Domain)
	return ds, args.Error(1)
}

func (m *mockDomains) ListRecords(ctx context.Context, domainID string) ([]model.DNSRecord, error) {
	args := m.Called(ctx, domainID)
	records, _ := args.Get(0).([]model.DNSRecord)
	return records, args.Error(1)
}

func (m *mockDomains) StartVerification(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *mockDomains) SetPrimary(ctx context.Context, id string) (*model.Domain, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*model.Domain)
	return d, args.Error(1)
}
