package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/sitepublish/internal/model"
)

// ---------- fakes ----------

type fakeRepos struct {
	err   error
	calls []string
}

func (f *fakeRepos) EnsureRepository(_ context.Context, name, _ string) (Repository, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return Repository{}, f.err
	}
	return Repository{Owner: "sites", Name: name, FullName: "sites/" + name}, nil
}

type fakeArtifacts struct {
	files int
	err   error
	refs  []string
}

func (f *fakeArtifacts) PublishArtifact(_ context.Context, _ Repository, ref, _ string) (int, error) {
	f.refs = append(f.refs, ref)
	return f.files, f.err
}

type fakeHosting struct {
	mu         sync.Mutex
	projectErr error
	domainErr  error
	triggerErr error
	states     []string
	polls      int
	domains    []string
	env        map[string]string
	triggered  bool
}

func (f *fakeHosting) EnsureProject(_ context.Context, name string, _ Repository) (Project, error) {
	if f.projectErr != nil {
		return Project{}, f.projectErr
	}
	return Project{ID: "prj_1", Name: name}, nil
}

func (f *fakeHosting) SetEnv(_ context.Context, _ string, vars map[string]string) error {
	f.env = vars
	return nil
}

func (f *fakeHosting) AddDomain(_ context.Context, _ string, hostname string) error {
	if f.domainErr != nil {
		return f.domainErr
	}
	f.domains = append(f.domains, hostname)
	return nil
}

func (f *fakeHosting) TriggerBuild(_ context.Context, _ Project, _ Repository) (Build, error) {
	if f.triggerErr != nil {
		return Build{}, f.triggerErr
	}
	f.triggered = true
	return Build{ID: "dpl_1", State: BuildQueued}, nil
}

func (f *fakeHosting) GetBuild(_ context.Context, id string) (Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := BuildReady
	if len(f.states) > 0 {
		idx := f.polls
		if idx >= len(f.states) {
			idx = len(f.states) - 1
		}
		state = f.states[idx]
	}
	f.polls++
	return Build{ID: id, State: state}, nil
}

type fakeDNS struct {
	setup    DNSSetup
	err      error
	purgeErr error
	hosts    []string
	purged   []string
}

func (f *fakeDNS) FullSetup(_ context.Context, host string, _ []DNSRecord) (DNSSetup, error) {
	f.hosts = append(f.hosts, host)
	return f.setup, f.err
}

func (f *fakeDNS) PurgeCache(_ context.Context, zoneID string) error {
	f.purged = append(f.purged, zoneID)
	return f.purgeErr
}

type fakeSites struct {
	err  error
	urls []string
}

func (f *fakeSites) Check(_ context.Context, url string) error {
	f.urls = append(f.urls, url)
	return f.err
}

// ---------- helpers ----------

type fixture struct {
	repos     *fakeRepos
	artifacts *fakeArtifacts
	hosting   *fakeHosting
	dns       *fakeDNS
	sites     *fakeSites
	runner    *Runner
}

func newFixture() *fixture {
	f := &fixture{
		repos:     &fakeRepos{},
		artifacts: &fakeArtifacts{files: 3},
		hosting:   &fakeHosting{},
		dns:       &fakeDNS{setup: DNSSetup{ZoneID: "zone-1"}},
		sites:     &fakeSites{},
	}
	f.runner = NewRunner(Collaborators{
		Repos:     f.repos,
		Artifacts: f.artifacts,
		Hosting:   f.hosting,
		DNS:       f.dns,
		Sites:     f.sites,
	}, time.Millisecond)
	return f
}

func subdomainConfig() Config {
	return Config{
		DeploymentID:    "dep-1",
		TenantID:        "tenant-1",
		TenantSlug:      "acme-motors",
		Version:         1,
		Route:           model.RouteSubdomain,
		PrimaryHostname: "acme-motors.sites.example.com",
		Hostnames:       []string{"acme-motors.sites.example.com"},
		ArtifactRef:     "artifacts/tenant-1/site.tar.gz",
		CommitMessage:   "Deploy v1",
	}
}

func customConfig() Config {
	cfg := subdomainConfig()
	cfg.Route = model.RouteCustom
	cfg.PrimaryHostname = "acmemotors.com"
	cfg.Hostnames = []string{"acme-motors.sites.example.com", "acmemotors.com"}
	cfg.DNSRecords = []DNSRecord{
		{Type: "CNAME", Name: "@", Content: "cname.vercel-dns.com", TTL: 600},
		{Type: "CNAME", Name: "www", Content: "cname.vercel-dns.com", TTL: 600},
	}
	return cfg
}

func stepStatuses(steps []model.DeploymentStep) map[string]string {
	out := make(map[string]string, len(steps))
	for _, s := range steps {
		out[s.Name] = s.Status
	}
	return out
}

// ---------- tests ----------

func TestPublish_SubdomainSuccess(t *testing.T) {
	f := newFixture()

	res := f.runner.Publish(context.Background(), subdomainConfig(), nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "https://acme-motors.sites.example.com", res.SiteURL)
	assert.Equal(t, "dpl_1", res.BuildID)
	assert.Empty(t, res.Error)
	assert.Empty(t, res.Warnings)

	names := make([]string, len(res.Steps))
	for i, s := range res.Steps {
		names[i] = s.Name
		assert.Equal(t, model.StepCompleted, s.Status, s.Name)
		assert.NotNil(t, s.StartedAt)
		assert.NotNil(t, s.FinishedAt)
	}
	assert.Equal(t, []string{
		StepValidateConfig, StepCreateRepository, StepPushSite, StepCreateHostingProject,
		StepAttachDomains, StepTriggerBuild, StepAwaitBuild, StepVerifySite,
	}, names)

	assert.Equal(t, []string{"site-acme-motors"}, f.repos.calls)
	assert.Equal(t, []string{"acme-motors.sites.example.com"}, f.hosting.domains)
	assert.Equal(t, "tenant-1", f.hosting.env["SITE_TENANT_ID"])
	assert.Equal(t, "1", f.hosting.env["SITE_VERSION"])
	assert.Empty(t, f.dns.hosts, "subdomain route must not touch the DNS provider")
	assert.Equal(t, []string{"https://acme-motors.sites.example.com"}, f.sites.urls)
}

func TestPublish_CustomRouteRunsDNSSteps(t *testing.T) {
	f := newFixture()
	f.dns.setup.Failures = []string{"record TXT _verify: quota exceeded", "caching: feature unavailable"}

	res := f.runner.Publish(context.Background(), customConfig(), nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "https://acmemotors.com", res.SiteURL)
	assert.Equal(t, []string{"acmemotors.com"}, f.dns.hosts)
	assert.Equal(t, []string{"zone-1"}, f.dns.purged)

	statuses := stepStatuses(res.Steps)
	assert.Equal(t, model.StepCompleted, statuses[StepConfigureDNS])
	assert.Equal(t, model.StepCompleted, statuses[StepPurgeCache])
	assert.Equal(t, []string{
		"configure_dns: record TXT _verify: quota exceeded",
		"configure_dns: caching: feature unavailable",
	}, res.Warnings)
}

func TestPublish_FatalFailureStopsPipeline(t *testing.T) {
	f := newFixture()
	f.hosting.projectErr = errors.New("vercel create project: status 403: forbidden")

	res := f.runner.Publish(context.Background(), subdomainConfig(), nil)

	assert.False(t, res.Success)
	assert.Equal(t, StepCreateHostingProject, res.FailedStep)
	assert.Equal(t, "create_hosting_project: vercel create project: status 403: forbidden", res.Error)
	assert.Empty(t, res.SiteURL)
	assert.False(t, f.hosting.triggered)

	statuses := stepStatuses(res.Steps)
	assert.Equal(t, model.StepCompleted, statuses[StepPushSite])
	assert.Equal(t, model.StepFailed, statuses[StepCreateHostingProject])
	assert.Equal(t, model.StepPending, statuses[StepAttachDomains])
	assert.Equal(t, model.StepPending, statuses[StepTriggerBuild])
	assert.Equal(t, model.StepPending, statuses[StepVerifySite])
	assert.Equal(t, 38, Progress(res.Steps))
}

func TestPublish_ZoneFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.dns.err = errors.New("cloudflare create zone: invalid zone name")

	res := f.runner.Publish(context.Background(), customConfig(), nil)

	assert.False(t, res.Success)
	assert.Equal(t, StepConfigureDNS, res.FailedStep)
	assert.Empty(t, f.hosting.domains)
}

func TestPublish_NonFatalStepFailureIsWarning(t *testing.T) {
	f := newFixture()
	f.sites.err = errors.New("GET https://acme-motors.sites.example.com: status 503")

	res := f.runner.Publish(context.Background(), subdomainConfig(), nil)

	require.True(t, res.Success)
	last := res.Steps[len(res.Steps)-1]
	assert.Equal(t, StepVerifySite, last.Name)
	assert.Equal(t, model.StepCompleted, last.Status)
	assert.Contains(t, last.Message, "skipped")
	assert.Equal(t, []string{"verify_site: GET https://acme-motors.sites.example.com: status 503"}, res.Warnings)
	assert.Equal(t, 100, Progress(res.Steps))
}

func TestPublish_InvalidConfig(t *testing.T) {
	f := newFixture()
	cfg := subdomainConfig()
	cfg.TenantSlug = "Not A Slug"

	res := f.runner.Publish(context.Background(), cfg, nil)

	assert.False(t, res.Success)
	assert.Equal(t, StepValidateConfig, res.FailedStep)
	assert.Contains(t, res.Error, "invalid config: tenant_slug")
	assert.Empty(t, f.repos.calls, "no external calls after a validation failure")
}

func TestPublish_BuildErrorFailsAwaitStep(t *testing.T) {
	f := newFixture()
	f.hosting.states = []string{BuildQueued, BuildBuilding, BuildError}

	res := f.runner.Publish(context.Background(), subdomainConfig(), nil)

	assert.False(t, res.Success)
	assert.Equal(t, StepAwaitBuild, res.FailedStep)
	assert.Contains(t, res.Error, "finished in state ERROR")
	assert.Equal(t, 3, f.hosting.polls)
}

func TestPublish_PollsUntilReady(t *testing.T) {
	f := newFixture()
	f.hosting.states = []string{BuildQueued, BuildInitializing, BuildBuilding, BuildReady}

	res := f.runner.Publish(context.Background(), subdomainConfig(), nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 4, f.hosting.polls)
}

func TestPublish_DeadlineReportsTimeout(t *testing.T) {
	f := newFixture()
	f.hosting.states = []string{BuildBuilding}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res := f.runner.Publish(ctx, subdomainConfig(), nil)

	assert.False(t, res.Success)
	assert.True(t, res.TimedOut)
	assert.Equal(t, StepAwaitBuild, res.FailedStep)
	assert.Contains(t, res.Error, "timed out after")
}

func TestPublish_ExpiredContextRunsNoSteps(t *testing.T) {
	f := newFixture()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Minute))
	defer cancel()

	res := f.runner.Publish(ctx, subdomainConfig(), nil)

	assert.True(t, res.TimedOut)
	assert.Equal(t, StepValidateConfig, res.FailedStep)
	assert.Empty(t, f.repos.calls)
	assert.False(t, f.hosting.triggered)
}

func TestPublish_ObserverGetsIndependentSnapshots(t *testing.T) {
	f := newFixture()
	var snapshots [][]model.DeploymentStep

	res := f.runner.Publish(context.Background(), subdomainConfig(), func(steps []model.DeploymentStep) {
		steps[0].Status = "tampered"
		snapshots = append(snapshots, steps)
	})

	require.True(t, res.Success)
	// Two notifications per step plus one build state report.
	assert.Len(t, snapshots, 2*len(res.Steps)+1)
	assert.Equal(t, model.StepCompleted, res.Steps[0].Status)
	assert.Equal(t, model.StepPending, stepStatuses(snapshots[0][1:])[StepCreateRepository])
}

func TestPublish_AwaitBuildReportsBuildProgress(t *testing.T) {
	f := newFixture()
	f.hosting.states = []string{BuildQueued, BuildQueued, BuildInitializing, BuildBuilding, BuildReady}

	var progress []int
	var last model.DeploymentStep
	res := f.runner.Publish(context.Background(), subdomainConfig(), func(steps []model.DeploymentStep) {
		for _, s := range steps {
			if s.Name == StepAwaitBuild && s.Status == model.StepInProgress && s.Progress > 0 {
				progress = append(progress, s.Progress)
			}
			if s.Name == StepAwaitBuild {
				last = s
			}
		}
	})

	require.True(t, res.Success)
	// Repeated states are reported once.
	assert.Equal(t, []int{10, 25, 60, 100}, progress)
	assert.Equal(t, "build dpl_1 is READY", last.Message)
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, model.StepCompleted, last.Status)
}

func TestPublish_AttemptsDoNotShareSteps(t *testing.T) {
	f := newFixture()

	first := f.runner.Publish(context.Background(), subdomainConfig(), nil)
	f.hosting.projectErr = errors.New("boom")
	second := f.runner.Publish(context.Background(), subdomainConfig(), nil)

	assert.True(t, first.Success)
	assert.False(t, second.Success)
	for _, s := range first.Steps {
		assert.Equal(t, model.StepCompleted, s.Status)
	}
}

func TestPublish_EmptyArtifactFails(t *testing.T) {
	f := newFixture()
	f.artifacts.files = 0

	res := f.runner.Publish(context.Background(), subdomainConfig(), nil)

	assert.False(t, res.Success)
	assert.Equal(t, StepPushSite, res.FailedStep)
	assert.Contains(t, res.Error, "contains no files")
}

func TestStepNames_DependsOnRoute(t *testing.T) {
	assert.NotContains(t, StepNames(subdomainConfig()), StepConfigureDNS)
	assert.Contains(t, StepNames(customConfig()), StepConfigureDNS)
	assert.Contains(t, StepNames(customConfig()), StepPurgeCache)

	steps := PendingSteps(customConfig())
	for _, s := range steps {
		assert.Equal(t, model.StepPending, s.Status)
	}
}
