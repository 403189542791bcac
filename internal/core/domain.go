package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/platform"
	"github.com/edvin/sitepublish/internal/verify"
)

const domainColumns = `id, tenant_id, hostname, type, status, status_message, ssl_status, ssl_expires_at,
	is_primary, zone_id, created_at, updated_at`

func scanDomain(row pgx.Row) (*model.Domain, error) {
	var d model.Domain
	err := row.Scan(&d.ID, &d.TenantID, &d.Hostname, &d.Type, &d.Status, &d.StatusMessage, &d.SSLStatus,
		&d.SSLExpiresAt, &d.IsPrimary, &d.ZoneID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type DomainService struct {
	db           DB
	tc           temporalclient.Client
	edgeHostname string
}

func NewDomainService(db DB, tc temporalclient.Client, edgeHostname string) *DomainService {
	return &DomainService{db: db, tc: tc, edgeHostname: edgeHostname}
}

// ConnectCustom registers a customer-owned hostname for the tenant as a
// pending custom domain and returns the records the customer has to publish,
// including a fresh ownership token.
func (s *DomainService) ConnectCustom(ctx context.Context, tenantID, hostname string) (*model.Domain, []model.DNSRecord, error) {
	hostname = strings.TrimSuffix(strings.ToLower(hostname), ".")
	domainID := platform.NewID()
	token, err := verify.NewOwnershipToken()
	if err != nil {
		return nil, nil, err
	}
	expected := verify.CustomDomainRecords(s.edgeHostname, token)

	d, err := scanDomain(s.db.QueryRow(ctx,
		`WITH d AS (
			INSERT INTO domains (id, tenant_id, hostname, type, status, ssl_status, is_primary, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, false, now(), now())
			RETURNING `+domainColumns+`
		), r AS (
			INSERT INTO domain_dns_records (id, domain_id, type, name, expected, ttl, matched, record_group)
			SELECT rec.id, d.id, rec.type, rec.name, rec.expected, rec.ttl, false, rec.grp
			FROM d, jsonb_to_recordset($7::jsonb) AS rec(id text, type text, name text, expected text, ttl int, grp text)
		)
		SELECT `+domainColumns+` FROM d`,
		domainID, tenantID, hostname, model.DomainTypeCustom, model.DomainPending, model.SSLNone,
		recordSetJSON(expected),
	))
	if err != nil {
		return nil, nil, mapError(fmt.Sprintf("insert domain %s", hostname), err)
	}

	records, err := s.ListRecords(ctx, d.ID)
	if err != nil {
		return nil, nil, err
	}
	return d, records, nil
}

type recordSetRow struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Expected string `json:"expected"`
	TTL      int    `json:"ttl"`
	Group    string `json:"grp"`
}

func recordSetJSON(records []model.DNSRecord) []recordSetRow {
	rows := make([]recordSetRow, len(records))
	for i, r := range records {
		rows[i] = recordSetRow{ID: platform.NewID(), Type: r.Type, Name: r.Name, Expected: r.Expected, TTL: r.TTL, Group: r.Group}
	}
	return rows
}

func (s *DomainService) GetByID(ctx context.Context, id string) (*model.Domain, error) {
	d, err := scanDomain(s.db.QueryRow(ctx, `SELECT `+domainColumns+` FROM domains WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(fmt.Sprintf("get domain %s", id), err)
	}
	return d, nil
}

// ListByTenant returns every domain of the tenant, primary first.
func (s *DomainService) ListByTenant(ctx context.Context, tenantID string) ([]model.Domain, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE tenant_id = $1 ORDER BY is_primary DESC, hostname`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var domains []model.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return domains, nil
}

// ListRecords returns the expected DNS records of a domain with their last
// observed values.
func (s *DomainService) ListRecords(ctx context.Context, domainID string) ([]model.DNSRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, domain_id, type, name, expected, observed, ttl, matched, checked_at, record_group
		 FROM domain_dns_records WHERE domain_id = $1 ORDER BY type, name`, domainID,
	)
	if err != nil {
		return nil, fmt.Errorf("list dns records: %w", err)
	}
	defer rows.Close()

	var records []model.DNSRecord
	for rows.Next() {
		var r model.DNSRecord
		if err := rows.Scan(&r.ID, &r.DomainID, &r.Type, &r.Name, &r.Expected, &r.Observed, &r.TTL,
			&r.Matched, &r.CheckedAt, &r.Group); err != nil {
			return nil, fmt.Errorf("scan dns record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dns records: %w", err)
	}
	return records, nil
}

// StartVerification moves a pending or failed domain to verifying and starts
// the verification workflow. It returns the domain's resulting status. An
// active domain is left alone and reported as active; a domain that is
// already verifying is reported as verifying without starting a second run.
func (s *DomainService) StartVerification(ctx context.Context, id string) (string, error) {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	if err := verify.Begin(d.Status); err != nil {
		var terr *verify.TransitionError
		switch {
		case errors.Is(err, verify.ErrAlreadyActive):
			return model.DomainActive, nil
		case errors.As(err, &terr) && d.Status == model.DomainVerifying:
			return model.DomainVerifying, nil
		default:
			return "", err
		}
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE domains SET status = $1, status_message = NULL, updated_at = now()
		 WHERE id = $2 AND status IN ($3, $4)`,
		model.DomainVerifying, id, model.DomainPending, model.DomainFailed,
	)
	if err != nil {
		return "", fmt.Errorf("set domain %s verifying: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Lost a race with another request; report whatever it left behind.
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return current.Status, nil
	}

	if err := startWorkflow(ctx, s.tc, "VerifyDomainWorkflow", workflowID("verify-domain", id), id); err != nil {
		msg := fmt.Sprintf("start verification: %v", err)
		if _, uerr := s.db.Exec(ctx,
			`UPDATE domains SET status = $1, status_message = $2, updated_at = now() WHERE id = $3`,
			model.DomainFailed, msg, id,
		); uerr != nil {
			return "", fmt.Errorf("start VerifyDomainWorkflow: %w (mark failed: %v)", err, uerr)
		}
		return "", fmt.Errorf("start VerifyDomainWorkflow: %w", err)
	}
	return model.DomainVerifying, nil
}

// SetPrimary makes an active domain the tenant's primary domain. The
// previous primary is cleared by the same statement.
func (s *DomainService) SetPrimary(ctx context.Context, id string) (*model.Domain, error) {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DomainActive {
		return nil, fmt.Errorf("set primary %s: %w", d.Hostname, ErrDomainNotActive)
	}
	if d.IsPrimary {
		return d, nil
	}

	_, err = s.db.Exec(ctx,
		`UPDATE domains SET is_primary = (id = $1), updated_at = now()
		 WHERE tenant_id = $2 AND (id = $1 OR is_primary)`,
		id, d.TenantID,
	)
	if err != nil {
		return nil, mapError(fmt.Sprintf("set primary domain %s", id), err)
	}
	return s.GetByID(ctx, id)
}
