// Package cloudflare wraps cloudflare-go for the zone, DNS record, TLS and
// edge settings a published site needs.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/rs/zerolog"

	"github.com/edvin/sitepublish/internal/provider"
)

// Error codes Cloudflare returns when a record with the same name and type
// already exists.
const (
	codeRecordExists    = 81057
	codeRecordDuplicate = 81053
)

type Client struct {
	api       *cf.API
	accountID string
	logger    zerolog.Logger
}

// Options tunes the underlying API client. Zero values keep the library
// defaults, except MaxRetries where a negative value disables retries.
type Options struct {
	BaseURL    string
	RateLimit  float64
	MaxRetries int
}

// NewClient creates a Cloudflare client authenticated with an API token.
func NewClient(token, accountID string, opts Options, logger zerolog.Logger) (*Client, error) {
	apiOpts := []cf.Option{
		cf.HTTPClient(&http.Client{
			Timeout:   30 * time.Second,
			Transport: recordingTransport{base: http.DefaultTransport},
		}),
	}
	if opts.BaseURL != "" {
		apiOpts = append(apiOpts, cf.BaseURL(strings.TrimSuffix(opts.BaseURL, "/")))
	}
	if opts.RateLimit > 0 {
		apiOpts = append(apiOpts, cf.UsingRateLimit(opts.RateLimit))
	}
	if opts.MaxRetries < 0 {
		apiOpts = append(apiOpts, cf.UsingRetryPolicy(0, 0, 0))
	}

	api, err := cf.NewWithAPIToken(token, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("create cloudflare client: %w", err)
	}
	return &Client{
		api:       api,
		accountID: accountID,
		logger:    logger.With().Str("component", "cloudflare").Logger(),
	}, nil
}

type Zone struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	NameServers []string `json:"name_servers"`
}

type Record struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type RecordRef struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type SSLStatus struct {
	Status    string     `json:"status"`
	Authority string     `json:"certificate_authority,omitempty"`
	ExpiresOn *time.Time `json:"expires_on,omitempty"`
}

// apiError keeps the Cloudflare error codes next to the generic provider error.
type apiError struct {
	err   *provider.Error
	codes []int
}

func (e *apiError) Error() string { return e.err.Error() }
func (e *apiError) Unwrap() error { return e.err }

func (e *apiError) hasCode(code int) bool {
	return slices.Contains(e.codes, code)
}

// exchange is the last HTTP response seen during one client call.
type exchange struct {
	status   int
	codes    []int
	messages []string
}

type exchangeKey struct{}

// recordingTransport copies the status and envelope errors of each response
// into the exchange carried by the request context.
type recordingTransport struct {
	base http.RoundTripper
}

func (t recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	ex, ok := req.Context().Value(exchangeKey{}).(*exchange)
	if !ok {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var env struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	*ex = exchange{status: resp.StatusCode}
	if json.Unmarshal(body, &env) == nil {
		for _, e := range env.Errors {
			ex.codes = append(ex.codes, e.Code)
			ex.messages = append(ex.messages, fmt.Sprintf("%d: %s", e.Code, e.Message))
		}
	}
	return resp, nil
}

// call runs fn and turns a failed API response into a provider error. Errors
// raised before any response arrived are returned wrapped and stay retryable.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ex := &exchange{}
	err := fn(context.WithValue(ctx, exchangeKey{}, ex))
	if err == nil {
		return nil
	}
	if ex.status == 0 {
		return fmt.Errorf("cloudflare %s: %w", op, err)
	}
	msg := strings.Join(ex.messages, "; ")
	if msg == "" {
		msg = err.Error()
	}
	return &apiError{
		err:   &provider.Error{Provider: "cloudflare", Op: op, StatusCode: ex.status, Message: msg},
		codes: ex.codes,
	}
}

// GetZone returns the zone for name, or nil if the account has none.
func (c *Client) GetZone(ctx context.Context, name string) (*Zone, error) {
	var zones []cf.Zone
	err := c.call(ctx, "get zone", func(ctx context.Context) (err error) {
		zones, err = c.api.ListZones(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, nil
	}
	zone := toZone(zones[0])
	return &zone, nil
}

// CreateZone returns the existing zone for host or creates a new full-setup zone.
func (c *Client) CreateZone(ctx context.Context, host string) (Zone, error) {
	existing, err := c.GetZone(ctx, host)
	if err != nil {
		return Zone{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	var created cf.Zone
	err = c.call(ctx, "create zone", func(ctx context.Context) (err error) {
		created, err = c.api.CreateZone(ctx, host, true, cf.Account{ID: c.accountID}, "full")
		return err
	})
	if err != nil {
		return Zone{}, err
	}
	return toZone(created), nil
}

func toZone(z cf.Zone) Zone {
	return Zone{ID: z.ID, Name: z.Name, Status: z.Status, NameServers: z.NameServers}
}

// AddRecord creates a DNS record in zone; the record name may be relative to
// the zone. If a record with the same type and name already exists its
// content is updated instead.
func (c *Client) AddRecord(ctx context.Context, zone Zone, rec Record) (RecordRef, error) {
	if rec.TTL == 0 {
		rec.TTL = 1
	}
	rec.Name = FQDN(rec.Name, zone.Name)
	var created cf.DNSRecord
	err := c.call(ctx, "add record", func(ctx context.Context) (err error) {
		created, err = c.api.CreateDNSRecord(ctx, cf.ZoneIdentifier(zone.ID), cf.CreateDNSRecordParams{
			Type:    rec.Type,
			Name:    rec.Name,
			Content: rec.Content,
			TTL:     rec.TTL,
			Proxied: cf.BoolPtr(rec.Proxied),
		})
		return err
	})
	if err == nil {
		return toRef(created), nil
	}

	var apiErr *apiError
	if !errors.As(err, &apiErr) || !(apiErr.hasCode(codeRecordExists) || apiErr.hasCode(codeRecordDuplicate)) {
		return RecordRef{}, err
	}

	existing, lerr := c.ListRecords(ctx, zone.ID, rec.Type, rec.Name)
	if lerr != nil || len(existing) == 0 {
		return RecordRef{}, err
	}
	return c.UpdateRecord(ctx, zone.ID, existing[0].ID, rec)
}

// FQDN expands a zone-relative record name. "@" is the zone apex.
func FQDN(name, zone string) string {
	switch {
	case zone == "":
		return name
	case name == "@" || name == "":
		return zone
	case name == zone || strings.HasSuffix(name, "."+zone):
		return name
	default:
		return name + "." + zone
	}
}

// ListRecords lists records in a zone, optionally filtered by type and
// fully qualified name.
func (c *Client) ListRecords(ctx context.Context, zoneID, recordType, name string) ([]RecordRef, error) {
	var records []cf.DNSRecord
	err := c.call(ctx, "list records", func(ctx context.Context) (err error) {
		records, _, err = c.api.ListDNSRecords(ctx, cf.ZoneIdentifier(zoneID), cf.ListDNSRecordsParams{
			Type:       recordType,
			Name:       name,
			ResultInfo: cf.ResultInfo{Page: 1, PerPage: 100},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	refs := make([]RecordRef, len(records))
	for i, r := range records {
		refs[i] = toRef(r)
	}
	return refs, nil
}

// UpdateRecord patches an existing record.
func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID string, rec Record) (RecordRef, error) {
	var updated cf.DNSRecord
	err := c.call(ctx, "update record", func(ctx context.Context) (err error) {
		updated, err = c.api.UpdateDNSRecord(ctx, cf.ZoneIdentifier(zoneID), cf.UpdateDNSRecordParams{
			ID:      recordID,
			Type:    rec.Type,
			Name:    rec.Name,
			Content: rec.Content,
			TTL:     rec.TTL,
			Proxied: cf.BoolPtr(rec.Proxied),
		})
		return err
	})
	if err != nil {
		return RecordRef{}, err
	}
	return toRef(updated), nil
}

func toRef(r cf.DNSRecord) RecordRef {
	return RecordRef{ID: r.ID, Type: r.Type, Name: r.Name, Content: r.Content}
}

func (c *Client) patchSetting(ctx context.Context, zoneID, setting string, value any) error {
	return c.call(ctx, "set "+setting, func(ctx context.Context) error {
		_, err := c.api.UpdateZoneSetting(ctx, cf.ZoneIdentifier(zoneID), cf.UpdateZoneSettingParams{
			Name:  setting,
			Value: value,
		})
		return err
	})
}

// ConfigureSSL sets the zone's TLS mode (off, flexible, full, strict).
func (c *Client) ConfigureSSL(ctx context.Context, zoneID, mode string) error {
	return c.patchSetting(ctx, zoneID, "ssl", mode)
}

// EnableAlwaysHTTPS redirects plain HTTP to HTTPS and rewrites mixed content links.
func (c *Client) EnableAlwaysHTTPS(ctx context.Context, zoneID string) error {
	if err := c.patchSetting(ctx, zoneID, "always_use_https", "on"); err != nil {
		return err
	}
	return c.patchSetting(ctx, zoneID, "automatic_https_rewrites", "on")
}

// GetSSLStatus reports the status of the zone's first certificate pack.
// A zone without packs is pending.
func (c *Client) GetSSLStatus(ctx context.Context, zoneID string) (SSLStatus, error) {
	var packs []cf.CertificatePack
	err := c.call(ctx, "get ssl status", func(ctx context.Context) (err error) {
		packs, err = c.api.ListCertificatePacks(ctx, zoneID)
		return err
	})
	if err != nil {
		return SSLStatus{}, err
	}
	if len(packs) == 0 {
		return SSLStatus{Status: "pending"}, nil
	}

	pack := packs[0]
	status := SSLStatus{Status: pack.Status, Authority: pack.CertificateAuthority}
	for _, cert := range pack.Certificates {
		if cert.ExpiresOn.IsZero() {
			continue
		}
		if status.ExpiresOn == nil || cert.ExpiresOn.Before(*status.ExpiresOn) {
			expires := cert.ExpiresOn
			status.ExpiresOn = &expires
		}
	}
	return status, nil
}

// ConfigureCaching enables aggressive caching with a four hour browser TTL.
func (c *Client) ConfigureCaching(ctx context.Context, zoneID string) error {
	if err := c.patchSetting(ctx, zoneID, "cache_level", "aggressive"); err != nil {
		return err
	}
	return c.patchSetting(ctx, zoneID, "browser_cache_ttl", 14400)
}

// EnableSecurity turns on the security features available on the zone's
// plan. Each feature is attempted independently; the returned slice holds
// one message per feature that could not be enabled.
func (c *Client) EnableSecurity(ctx context.Context, zoneID string) []string {
	var unavailable []string
	err := c.call(ctx, "get waf packages", func(ctx context.Context) error {
		_, err := c.api.ListWAFPackages(ctx, zoneID)
		return err
	})
	if err != nil {
		unavailable = append(unavailable, "waf: "+err.Error())
	}
	if err := c.patchSetting(ctx, zoneID, "bot_fight_mode", "on"); err != nil {
		unavailable = append(unavailable, "bot fight mode: "+err.Error())
	}
	return unavailable
}

// PurgeCache drops everything cached for the zone.
func (c *Client) PurgeCache(ctx context.Context, zoneID string) error {
	return c.call(ctx, "purge cache", func(ctx context.Context) error {
		_, err := c.api.PurgeEverything(ctx, zoneID)
		return err
	})
}
