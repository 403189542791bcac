package core

import (
	temporalclient "go.temporal.io/sdk/client"
)

type Services struct {
	Tenant     *TenantService
	Deployment *DeploymentService
	Domain     *DomainService
	APIKey     *APIKeyService
}

// Settings carries the deployment-wide values the services need.
type Settings struct {
	PlatformDomain string
	EdgeHostname   string
}

func NewServices(db DB, tc temporalclient.Client, settings Settings) *Services {
	return &Services{
		Tenant:     NewTenantService(db, settings.PlatformDomain),
		Deployment: NewDeploymentService(db, tc),
		Domain:     NewDomainService(db, tc, settings.EdgeHostname),
		APIKey:     NewAPIKeyService(db),
	}
}
