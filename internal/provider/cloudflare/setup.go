package cloudflare

import (
	"context"
	"fmt"

	"github.com/edvin/sitepublish/internal/pipeline"
)

// RecordOutcome is the result of adding one record during FullSetup.
type RecordOutcome struct {
	Record Record     `json:"record"`
	Ref    *RecordRef `json:"ref,omitempty"`
	Err    string     `json:"error,omitempty"`
}

// OK reports whether the record was created or updated.
func (o RecordOutcome) OK() bool {
	return o.Err == ""
}

// SetupResult describes a completed FullSetup. Warnings lists the optional
// features that could not be configured.
type SetupResult struct {
	Zone     Zone            `json:"zone"`
	Records  []RecordOutcome `json:"records"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Failures returns one message per failed record and per warning.
func (r SetupResult) Failures() []string {
	var out []string
	for _, o := range r.Records {
		if !o.OK() {
			out = append(out, fmt.Sprintf("record %s %s: %s", o.Record.Type, o.Record.Name, o.Err))
		}
	}
	return append(out, r.Warnings...)
}

// FullSetup prepares a zone to serve host: it creates or reuses the zone,
// adds every record, switches TLS to full with forced HTTPS and then enables
// caching and security. Only zone and TLS failures are returned as errors;
// record, caching and security failures are reported in the result.
func (c *Client) FullSetup(ctx context.Context, host string, records []Record) (SetupResult, error) {
	zone, err := c.CreateZone(ctx, host)
	if err != nil {
		return SetupResult{}, fmt.Errorf("create zone %s: %w", host, err)
	}
	result := SetupResult{Zone: zone}
	log := c.logger.With().Str("zone", zone.Name).Str("zone_id", zone.ID).Logger()

	for _, rec := range records {
		ref, err := c.AddRecord(ctx, zone, rec)
		if err != nil {
			log.Warn().Err(err).Str("type", rec.Type).Str("name", rec.Name).Msg("failed to add DNS record")
			result.Records = append(result.Records, RecordOutcome{Record: rec, Err: err.Error()})
			continue
		}
		result.Records = append(result.Records, RecordOutcome{Record: rec, Ref: &ref})
	}

	if err := c.ConfigureSSL(ctx, zone.ID, "full"); err != nil {
		return result, fmt.Errorf("configure ssl for %s: %w", host, err)
	}
	if err := c.EnableAlwaysHTTPS(ctx, zone.ID); err != nil {
		return result, fmt.Errorf("enable always https for %s: %w", host, err)
	}

	if err := c.ConfigureCaching(ctx, zone.ID); err != nil {
		log.Warn().Err(err).Msg("caching not configured")
		result.Warnings = append(result.Warnings, "caching: "+err.Error())
	}
	for _, msg := range c.EnableSecurity(ctx, zone.ID) {
		log.Info().Str("detail", msg).Msg("security feature unavailable")
		result.Warnings = append(result.Warnings, "security: "+msg)
	}

	log.Info().Int("records", len(records)).Int("failures", len(result.Failures())).Msg("zone setup complete")
	return result, nil
}

// DNSProvider adapts a Client to the publish pipeline.
type DNSProvider struct {
	client *Client
}

func NewDNSProvider(client *Client) *DNSProvider {
	return &DNSProvider{client: client}
}

// FullSetup writes one record per alternative group; the zone serves the
// first alternative.
func (p *DNSProvider) FullSetup(ctx context.Context, host string, records []pipeline.DNSRecord) (pipeline.DNSSetup, error) {
	served := pipeline.ServedRecords(records)
	recs := make([]Record, len(served))
	for i, r := range served {
		recs[i] = Record{Type: r.Type, Name: r.Name, Content: r.Content, TTL: r.TTL}
	}
	res, err := p.client.FullSetup(ctx, host, recs)
	if err != nil {
		return pipeline.DNSSetup{}, err
	}
	return pipeline.DNSSetup{
		ZoneID:      res.Zone.ID,
		NameServers: res.Zone.NameServers,
		Failures:    res.Failures(),
	}, nil
}

func (p *DNSProvider) PurgeCache(ctx context.Context, zoneID string) error {
	return p.client.PurgeCache(ctx, zoneID)
}
