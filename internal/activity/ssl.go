package activity

import (
	"context"
	"fmt"

	"github.com/edvin/sitepublish/internal/provider/cloudflare"
)

// SSL contains activities that drive certificate provisioning at the DNS/SSL
// provider.
type SSL struct {
	client *cloudflare.Client
}

// NewSSL creates a new SSL activity struct.
func NewSSL(client *cloudflare.Client) *SSL {
	return &SSL{client: client}
}

// EnsureZone returns the provider zone for hostname, creating it if needed.
func (a *SSL) EnsureZone(ctx context.Context, hostname string) (*cloudflare.Zone, error) {
	zone, err := a.client.CreateZone(ctx, hostname)
	if err != nil {
		return nil, providerError(fmt.Errorf("ensure zone %s: %w", hostname, err))
	}
	return &zone, nil
}

// ConfigureTLS sets full TLS mode and forces HTTPS on the zone.
func (a *SSL) ConfigureTLS(ctx context.Context, zoneID string) error {
	if err := a.client.ConfigureSSL(ctx, zoneID, "full"); err != nil {
		return providerError(fmt.Errorf("configure ssl: %w", err))
	}
	if err := a.client.EnableAlwaysHTTPS(ctx, zoneID); err != nil {
		return providerError(fmt.Errorf("enable always https: %w", err))
	}
	return nil
}

// GetSSLStatus reports the zone's certificate status.
func (a *SSL) GetSSLStatus(ctx context.Context, zoneID string) (*cloudflare.SSLStatus, error) {
	status, err := a.client.GetSSLStatus(ctx, zoneID)
	if err != nil {
		return nil, providerError(err)
	}
	return &status, nil
}
