// Package verify decides whether a custom hostname points at the platform by
// comparing the DNS records a tenant was asked to publish with what public
// DNS actually serves, and owns the domain status transitions that follow.
package verify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edvin/sitepublish/internal/model"
)

// Record TTL requested for connected custom domains.
const CustomRecordTTL = 600

const (
	// ApexAddress is the edge's anycast address for DNS hosts that cannot
	// put a CNAME on the apex.
	ApexAddress = "76.76.21.21"
	// OwnershipRecordName is the TXT record carrying a domain's ownership token.
	OwnershipRecordName = "_sitepublish-verify"
	// ApexGroup groups the apex alternatives.
	ApexGroup = "apex"
)

// Maximum concurrent lookups per check.
const lookupConcurrency = 4

// Resolver is the subset of *net.Resolver used for checks.
type Resolver interface {
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// CustomDomainRecords returns the records a tenant must publish to point a
// custom hostname at edge and prove they own it: the apex as a CNAME to edge
// or an A record to ApexAddress, a CNAME for www, and the ownership TXT.
func CustomDomainRecords(edge, token string) []model.DNSRecord {
	return []model.DNSRecord{
		{Type: "CNAME", Name: "@", Expected: edge, TTL: CustomRecordTTL, Group: ApexGroup},
		{Type: "A", Name: "@", Expected: ApexAddress, TTL: CustomRecordTTL, Group: ApexGroup},
		{Type: "CNAME", Name: "www", Expected: edge, TTL: CustomRecordTTL},
		{Type: "TXT", Name: OwnershipRecordName, Expected: token, TTL: CustomRecordTTL},
	}
}

// NewOwnershipToken returns a fresh random ownership token for a domain.
func NewOwnershipToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate ownership token: %w", err)
	}
	return "sitepublish-verify=" + hex.EncodeToString(b), nil
}

// FQDN expands a record name relative to hostname. "@" is the hostname itself.
func FQDN(name, hostname string) string {
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	hostname = strings.TrimSuffix(strings.ToLower(hostname), ".")
	switch {
	case name == "" || name == "@":
		return hostname
	case name == hostname || strings.HasSuffix(name, "."+hostname):
		return name
	default:
		return name + "." + hostname
	}
}

// RecordResult is one entry of the verification diff.
type RecordResult struct {
	model.DNSRecord
	Error string `json:"error,omitempty"`
}

// Result is the outcome of checking every expected record of a hostname.
type Result struct {
	Hostname  string         `json:"hostname"`
	Status    string         `json:"status"`
	Records   []RecordResult `json:"records"`
	CheckedAt time.Time      `json:"checked_at"`
}

// Matched reports whether every ungrouped record and at least one record of
// every group matched.
func (r Result) Matched() bool {
	return len(r.Records) > 0 && len(r.Mismatches()) == 0
}

// Mismatches returns the records that did not match, leaving out the
// alternatives of groups that are already satisfied.
func (r Result) Mismatches() []RecordResult {
	satisfied := map[string]bool{}
	for _, rec := range r.Records {
		if rec.Group != "" && rec.Matched {
			satisfied[rec.Group] = true
		}
	}
	var out []RecordResult
	for _, rec := range r.Records {
		if !rec.Matched && !satisfied[rec.Group] {
			out = append(out, rec)
		}
	}
	return out
}

// Summary is a one-line description of the mismatches, suitable for a
// domain status message. Unsatisfied alternatives share one entry.
func (r Result) Summary() string {
	var parts []string
	groupAt := map[string]int{}
	for _, m := range r.Mismatches() {
		observed := "nothing"
		if m.Observed != nil && *m.Observed != "" {
			observed = *m.Observed
		}
		if m.Group == "" {
			parts = append(parts, fmt.Sprintf("%s %s: expected %s, found %s", m.Type, FQDN(m.Name, r.Hostname), m.Expected, observed))
			continue
		}
		if i, ok := groupAt[m.Group]; ok {
			parts[i] += fmt.Sprintf(" or %s %s", m.Type, m.Expected)
			continue
		}
		groupAt[m.Group] = len(parts)
		parts = append(parts, fmt.Sprintf("%s: expected %s %s", FQDN(m.Name, r.Hostname), m.Type, m.Expected))
	}
	// Alternatives report what was found once, after the last option.
	for group, i := range groupAt {
		parts[i] += ", found " + r.groupObserved(group)
	}
	return strings.Join(parts, "; ")
}

func (r Result) groupObserved(group string) string {
	var seen []string
	for _, rec := range r.Records {
		if rec.Group == group && rec.Observed != nil && *rec.Observed != "" {
			seen = append(seen, rec.Type+" "+*rec.Observed)
		}
	}
	if len(seen) == 0 {
		return "nothing"
	}
	return strings.Join(seen, ", ")
}

type Checker struct {
	resolver Resolver
	now      func() time.Time
}

// NewChecker creates a Checker. A nil resolver uses net.DefaultResolver.
func NewChecker(resolver Resolver) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Checker{resolver: resolver, now: time.Now}
}

// Check resolves every expected record of hostname and reports which match.
// Lookup failures count as mismatches; they are never returned as errors.
func (c *Checker) Check(ctx context.Context, hostname string, records []model.DNSRecord) Result {
	checkedAt := c.now().UTC()
	results := make([]RecordResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, rec := range records {
		g.Go(func() error {
			results[i] = c.checkRecord(gctx, hostname, rec, checkedAt)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Hostname: hostname, Records: results, CheckedAt: checkedAt}
	if res.Matched() {
		res.Status = model.DomainActive
	} else {
		res.Status = model.DomainFailed
	}
	return res
}

func (c *Checker) checkRecord(ctx context.Context, hostname string, rec model.DNSRecord, checkedAt time.Time) RecordResult {
	out := RecordResult{DNSRecord: rec}
	out.CheckedAt = &checkedAt
	out.Matched = false
	out.Observed = nil

	name := FQDN(rec.Name, hostname)
	var observed []string
	var err error

	switch strings.ToUpper(rec.Type) {
	case "CNAME":
		var cname string
		cname, err = c.resolver.LookupCNAME(ctx, name)
		if err == nil && normalizeHost(cname) != normalizeHost(name) {
			observed = []string{cname}
		}
	case "A":
		observed, err = c.resolver.LookupHost(ctx, name)
	case "TXT":
		observed, err = c.resolver.LookupTXT(ctx, name)
	default:
		out.Error = fmt.Sprintf("unsupported record type %q", rec.Type)
		return out
	}

	if err != nil {
		var dnsErr *net.DNSError
		if !errors.As(err, &dnsErr) || !dnsErr.IsNotFound {
			out.Error = err.Error()
		}
		return out
	}
	if len(observed) > 0 {
		joined := strings.Join(observed, ",")
		out.Observed = &joined
	}
	out.Matched = matches(rec.Type, rec.Expected, observed)
	return out
}

// matches compares hostnames case-insensitively without the trailing dot;
// addresses and TXT values must match exactly.
func matches(recordType, expected string, observed []string) bool {
	if strings.EqualFold(recordType, "CNAME") {
		return slices.ContainsFunc(observed, func(o string) bool {
			return normalizeHost(o) == normalizeHost(expected)
		})
	}
	return slices.Contains(observed, expected)
}

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}
