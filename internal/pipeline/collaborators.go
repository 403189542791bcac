package pipeline

import "context"

// Repository identifies the source repository a site is pushed to.
type Repository struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	URL      string `json:"url"`
}

// RepoFile is one file written into a repository, at a path relative to its root.
type RepoFile struct {
	Path    string
	Content []byte
}

// Project is a hosting project serving one tenant's site.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Build is one build/deployment run at the hosting provider.
type Build struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	State string `json:"state"`
}

// DNSRecord is a record the DNS provider should serve for a hostname.
type DNSRecord struct {
	Type    string `json:"type" validate:"required,oneof=A CNAME TXT"`
	Name    string `json:"name" validate:"required"`
	Content string `json:"content" validate:"required"`
	TTL     int    `json:"ttl"`
	Group   string `json:"group,omitempty"`
}

// DNSSetup summarises a DNS provider setup. Failures holds the records and
// optional features that could not be configured; they never fail the setup.
type DNSSetup struct {
	ZoneID      string   `json:"zone_id"`
	NameServers []string `json:"name_servers,omitempty"`
	Failures    []string `json:"failures,omitempty"`
}

// RepoProvider creates and looks up source repositories.
type RepoProvider interface {
	EnsureRepository(ctx context.Context, name, description string) (Repository, error)
}

// ArtifactPublisher pushes a generated site bundle into a repository and
// returns the number of files written.
type ArtifactPublisher interface {
	PublishArtifact(ctx context.Context, repo Repository, artifactRef, message string) (int, error)
}

// HostingProvider builds and serves sites from a repository.
type HostingProvider interface {
	EnsureProject(ctx context.Context, name string, repo Repository) (Project, error)
	SetEnv(ctx context.Context, projectID string, vars map[string]string) error
	AddDomain(ctx context.Context, projectID, hostname string) error
	TriggerBuild(ctx context.Context, project Project, repo Repository) (Build, error)
	GetBuild(ctx context.Context, buildID string) (Build, error)
}

// DNSProvider configures DNS, TLS and edge caching for a custom hostname.
type DNSProvider interface {
	FullSetup(ctx context.Context, host string, records []DNSRecord) (DNSSetup, error)
	PurgeCache(ctx context.Context, zoneID string) error
}

// SiteChecker checks that a published site answers.
type SiteChecker interface {
	Check(ctx context.Context, url string) error
}

// ServedRecords drops all but the first record of every alternative group. A
// zone can only serve one of them.
func ServedRecords(records []DNSRecord) []DNSRecord {
	seen := map[string]bool{}
	var out []DNSRecord
	for _, r := range records {
		if r.Group != "" {
			if seen[r.Group] {
				continue
			}
			seen[r.Group] = true
		}
		out = append(out, r)
	}
	return out
}
