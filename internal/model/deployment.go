package model

import "time"

// Deployment is one versioned publish attempt for a tenant.
type Deployment struct {
	ID            string           `json:"id" db:"id"`
	TenantID      string           `json:"tenant_id" db:"tenant_id"`
	Version       int              `json:"version" db:"version"`
	Status        string           `json:"status" db:"status"`
	SiteURL       *string          `json:"site_url,omitempty" db:"site_url"`
	CommitMessage string           `json:"commit_message" db:"commit_message"`
	IsCurrent     bool             `json:"is_current" db:"is_current"`
	Steps         []DeploymentStep `json:"steps" db:"steps"`
	Warnings      []string         `json:"warnings,omitempty" db:"warnings"`
	ErrorMessage  *string          `json:"error_message,omitempty" db:"error_message"`
	BuildID       *string          `json:"build_id,omitempty" db:"build_id"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty" db:"finished_at"`
}

// DeploymentStep is the state of one named pipeline step.
type DeploymentStep struct {
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Message    string     `json:"message,omitempty"`
	Progress   int        `json:"progress,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
