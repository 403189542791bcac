package model

import "time"

type Domain struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	Hostname      string     `json:"hostname" db:"hostname"`
	Type          string     `json:"type" db:"type"`
	Status        string     `json:"status" db:"status"`
	StatusMessage *string    `json:"status_message,omitempty" db:"status_message"`
	SSLStatus     string     `json:"ssl_status" db:"ssl_status"`
	SSLExpiresAt  *time.Time `json:"ssl_expires_at,omitempty" db:"ssl_expires_at"`
	IsPrimary     bool       `json:"is_primary" db:"is_primary"`
	ZoneID        *string    `json:"zone_id,omitempty" db:"zone_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// DNSRecord is a record the tenant must publish for a domain, together with
// the value last observed in public DNS. Records sharing a non-empty Group
// are alternatives: one match satisfies the group.
type DNSRecord struct {
	ID        string     `json:"id" db:"id"`
	DomainID  string     `json:"domain_id" db:"domain_id"`
	Type      string     `json:"type" db:"type"`
	Name      string     `json:"name" db:"name"`
	Expected  string     `json:"expected" db:"expected"`
	Observed  *string    `json:"observed" db:"observed"`
	TTL       int        `json:"ttl" db:"ttl"`
	Matched   bool       `json:"matched" db:"matched"`
	Group     string     `json:"group,omitempty" db:"record_group"`
	CheckedAt *time.Time `json:"checked_at,omitempty" db:"checked_at"`
}
