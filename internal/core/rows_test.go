package core

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/sitepublish/internal/model"
)

func deploymentScan(d model.Deployment) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = d.ID
		*(dest[1].(*string)) = d.TenantID
		*(dest[2].(*int)) = d.Version
		*(dest[3].(*string)) = d.Status
		*(dest[4].(**string)) = d.SiteURL
		*(dest[5].(*string)) = d.CommitMessage
		*(dest[6].(*bool)) = d.IsCurrent
		*(dest[7].(*[]model.DeploymentStep)) = d.Steps
		*(dest[8].(*[]string)) = d.Warnings
		*(dest[9].(**string)) = d.ErrorMessage
		*(dest[10].(**string)) = d.BuildID
		*(dest[11].(*time.Time)) = d.CreatedAt
		*(dest[12].(*time.Time)) = d.UpdatedAt
		*(dest[13].(**time.Time)) = d.FinishedAt
		return nil
	}
}

func domainScan(d model.Domain) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = d.ID
		*(dest[1].(*string)) = d.TenantID
		*(dest[2].(*string)) = d.Hostname
		*(dest[3].(*string)) = d.Type
		*(dest[4].(*string)) = d.Status
		*(dest[5].(**string)) = d.StatusMessage
		*(dest[6].(*string)) = d.SSLStatus
		*(dest[7].(**time.Time)) = d.SSLExpiresAt
		*(dest[8].(*bool)) = d.IsPrimary
		*(dest[9].(**string)) = d.ZoneID
		*(dest[10].(*time.Time)) = d.CreatedAt
		*(dest[11].(*time.Time)) = d.UpdatedAt
		return nil
	}
}

func recordScan(r model.DNSRecord) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = r.ID
		*(dest[1].(*string)) = r.DomainID
		*(dest[2].(*string)) = r.Type
		*(dest[3].(*string)) = r.Name
		*(dest[4].(*string)) = r.Expected
		*(dest[5].(**string)) = r.Observed
		*(dest[6].(*int)) = r.TTL
		*(dest[7].(*bool)) = r.Matched
		*(dest[8].(**time.Time)) = r.CheckedAt
		*(dest[9].(*string)) = r.Group
		return nil
	}
}

func errRow(err error) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error { return err }}
}

func noRows() *mockRow {
	return errRow(pgx.ErrNoRows)
}

func pgError(code, constraint string) error {
	return &pgconn.PgError{Code: code, ConstraintName: constraint, Detail: "Key already exists."}
}

func strPtr(s string) *string { return &s }

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
