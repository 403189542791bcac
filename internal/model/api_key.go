package model

import "time"

// Wildcards for APIKey scopes and tenants.
const (
	ScopeAll   = "*:*"
	AllTenants = "*"
)

// APIKey is a stored API key. Scopes are resource:action pairs such as
// deployments:write, with *:* granting everything. Tenants lists the tenant
// IDs the key may act on; "*" means every tenant.
type APIKey struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	KeyHash   string     `json:"-" db:"key_hash"`
	Scopes    []string   `json:"scopes" db:"scopes"`
	Tenants   []string   `json:"tenants" db:"tenants"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}
