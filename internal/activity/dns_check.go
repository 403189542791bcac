package activity

import (
	"context"

	"github.com/edvin/sitepublish/internal/metrics"
	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/verify"
)

// DomainCheck resolves the public DNS records of custom domains.
type DomainCheck struct {
	checker *verify.Checker
}

// NewDomainCheck creates a new DomainCheck activity struct.
func NewDomainCheck(checker *verify.Checker) *DomainCheck {
	return &DomainCheck{checker: checker}
}

// CheckDomainRecordsParams holds the parameters for CheckDomainRecords.
type CheckDomainRecordsParams struct {
	Hostname string
	Records  []model.DNSRecord
}

// CheckDomainRecords compares each expected record with what public DNS
// serves. Lookup failures show up in the per-record diff, not as errors.
func (a *DomainCheck) CheckDomainRecords(ctx context.Context, params CheckDomainRecordsParams) (*verify.Result, error) {
	res := a.checker.Check(ctx, params.Hostname, params.Records)
	if res.Matched() {
		metrics.DomainVerificationsTotal.WithLabelValues("matched").Inc()
	} else {
		metrics.DomainVerificationsTotal.WithLabelValues("mismatched").Inc()
	}
	return &res, nil
}
