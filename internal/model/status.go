package model

// Deployment status constants.
const (
	DeploymentQueued   = "queued"
	DeploymentBuilding = "building"
	DeploymentReady    = "ready"
	DeploymentError    = "error"
)

// Step status constants.
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// Domain status constants.
const (
	DomainPending   = "pending"
	DomainVerifying = "verifying"
	DomainActive    = "active"
	DomainFailed    = "failed"
)

// SSL status constants.
const (
	SSLNone         = "none"
	SSLProvisioning = "provisioning"
	SSLActive       = "active"
	SSLFailed       = "failed"
)

// Domain type constants.
const (
	DomainTypePlatformSubdomain = "platform-subdomain"
	DomainTypeCustom            = "custom"
	DomainTypeManaged           = "managed"
)

// Hosting route constants.
const (
	RouteSubdomain = "subdomain"
	RouteCustom    = "custom"
)

// IsTerminalDeploymentStatus reports whether a deployment in the given status
// will never change status again.
func IsTerminalDeploymentStatus(status string) bool {
	return status == DeploymentReady || status == DeploymentError
}
