package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/sitepublish/internal/metrics"
	"github.com/edvin/sitepublish/internal/model"
)

// DomainContext is a domain together with the DNS records it expects.
type DomainContext struct {
	Domain  model.Domain      `json:"domain"`
	Records []model.DNSRecord `json:"records"`
}

// GetDomainContext loads a domain and its expected DNS records.
func (a *CoreDB) GetDomainContext(ctx context.Context, domainID string) (*DomainContext, error) {
	var d model.Domain
	err := a.db.QueryRow(ctx,
		`SELECT id, tenant_id, hostname, type, status, status_message, ssl_status, ssl_expires_at,
		        is_primary, zone_id, created_at, updated_at
		 FROM domains WHERE id = $1`, domainID,
	).Scan(&d.ID, &d.TenantID, &d.Hostname, &d.Type, &d.Status, &d.StatusMessage, &d.SSLStatus,
		&d.SSLExpiresAt, &d.IsPrimary, &d.ZoneID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get domain %s: %w", domainID, err)
	}

	rows, err := a.db.Query(ctx,
		`SELECT id, domain_id, type, name, expected, observed, ttl, matched, checked_at, record_group
		 FROM domain_dns_records WHERE domain_id = $1 ORDER BY type, name`, domainID,
	)
	if err != nil {
		return nil, fmt.Errorf("list dns records: %w", err)
	}
	defer rows.Close()

	dctx := &DomainContext{Domain: d}
	for rows.Next() {
		var r model.DNSRecord
		if err := rows.Scan(&r.ID, &r.DomainID, &r.Type, &r.Name, &r.Expected, &r.Observed, &r.TTL,
			&r.Matched, &r.CheckedAt, &r.Group); err != nil {
			return nil, fmt.Errorf("scan dns record: %w", err)
		}
		dctx.Records = append(dctx.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dns records: %w", err)
	}
	return dctx, nil
}

// SaveVerificationResultParams holds the parameters for SaveVerificationResult.
type SaveVerificationResultParams struct {
	DomainID      string
	Status        string
	SSLStatus     string
	StatusMessage *string
	Records       []model.DNSRecord
}

type observedRecord struct {
	ID        string     `json:"id"`
	Observed  *string    `json:"observed"`
	Matched   bool       `json:"matched"`
	CheckedAt *time.Time `json:"checked_at"`
}

// SaveVerificationResult stores the observed record values and the domain's
// resulting status in one statement.
func (a *CoreDB) SaveVerificationResult(ctx context.Context, params SaveVerificationResultParams) error {
	observed := make([]observedRecord, len(params.Records))
	for i, r := range params.Records {
		observed[i] = observedRecord{ID: r.ID, Observed: r.Observed, Matched: r.Matched, CheckedAt: r.CheckedAt}
	}

	_, err := a.db.Exec(ctx,
		`WITH r AS (
			UPDATE domain_dns_records rec
			SET observed = v.observed, matched = v.matched, checked_at = v.checked_at
			FROM jsonb_to_recordset($1::jsonb) AS v(id text, observed text, matched boolean, checked_at timestamptz)
			WHERE rec.id = v.id AND rec.domain_id = $2
		)
		UPDATE domains SET status = $3, ssl_status = $4, status_message = $5, updated_at = now()
		WHERE id = $2`,
		observed, params.DomainID, params.Status, params.SSLStatus, params.StatusMessage,
	)
	if err != nil {
		return fmt.Errorf("save verification of domain %s: %w", params.DomainID, err)
	}
	return nil
}

// UpdateSSLStatusParams holds the parameters for UpdateSSLStatus. Nil
// fields keep their stored value.
type UpdateSSLStatusParams struct {
	DomainID      string
	SSLStatus     string
	ExpiresAt     *time.Time
	ZoneID        *string
	StatusMessage *string
}

// UpdateSSLStatus sets the certificate status of a domain. The domain's own
// status is never changed here. Terminal statuses are counted as
// provisioning results.
func (a *CoreDB) UpdateSSLStatus(ctx context.Context, params UpdateSSLStatusParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE domains SET
			ssl_status = $1,
			ssl_expires_at = COALESCE($2, ssl_expires_at),
			zone_id = COALESCE($3, zone_id),
			status_message = COALESCE($4, status_message),
			updated_at = now()
		 WHERE id = $5`,
		params.SSLStatus, params.ExpiresAt, params.ZoneID, params.StatusMessage, params.DomainID,
	)
	if err != nil {
		return fmt.Errorf("update domain %s ssl status: %w", params.DomainID, err)
	}
	switch params.SSLStatus {
	case model.SSLActive:
		metrics.SSLProvisioningTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	case model.SSLFailed:
		metrics.SSLProvisioningTotal.WithLabelValues(metrics.ResultFailure).Inc()
	}
	return nil
}

// ExpiringDomain holds minimal certificate info for the SSL expiry cron.
type ExpiringDomain struct {
	ID        string    `json:"id"`
	Hostname  string    `json:"hostname"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ListExpiringSSL returns the custom domains whose active certificate expires
// within the given number of days.
func (a *CoreDB) ListExpiringSSL(ctx context.Context, days int) ([]ExpiringDomain, error) {
	rows, err := a.db.Query(ctx,
		`SELECT id, hostname, ssl_expires_at
		 FROM domains
		 WHERE ssl_status = $1 AND type <> $2
		   AND ssl_expires_at IS NOT NULL
		   AND ssl_expires_at <= now() + make_interval(days => $3)
		 ORDER BY ssl_expires_at ASC`,
		model.SSLActive, model.DomainTypePlatformSubdomain, days,
	)
	if err != nil {
		return nil, fmt.Errorf("list expiring ssl: %w", err)
	}
	defer rows.Close()

	var domains []ExpiringDomain
	for rows.Next() {
		var d ExpiringDomain
		if err := rows.Scan(&d.ID, &d.Hostname, &d.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan expiring domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}
