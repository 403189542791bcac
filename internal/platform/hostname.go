package platform

import "strings"

// SubdomainHostname is the hostname a tenant's site gets on the platform domain.
// Example: acme-motors.sites.example.com
func SubdomainHostname(platformDomain, slug string) string {
	return strings.ToLower(slug) + "." + strings.TrimSuffix(strings.ToLower(platformDomain), ".")
}

// SiteURL is the public HTTPS URL for a hostname.
func SiteURL(hostname string) string {
	return "https://" + hostname
}
