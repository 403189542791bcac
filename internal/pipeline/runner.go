// Package pipeline turns a tenant's publish config into a live build by
// running an ordered list of named steps against injected collaborators.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/edvin/sitepublish/internal/model"
)

// Step names, in execution order.
const (
	StepValidateConfig       = "validate_config"
	StepCreateRepository     = "create_repository"
	StepPushSite             = "push_site"
	StepCreateHostingProject = "create_hosting_project"
	StepConfigureDNS         = "configure_dns"
	StepAttachDomains        = "attach_domains"
	StepTriggerBuild         = "trigger_build"
	StepAwaitBuild           = "await_build"
	StepPurgeCache           = "purge_cache"
	StepVerifySite           = "verify_site"
)

const defaultPollInterval = 10 * time.Second

// Collaborators are the external systems the pipeline drives.
type Collaborators struct {
	Repos     RepoProvider
	Artifacts ArtifactPublisher
	Hosting   HostingProvider
	DNS       DNSProvider
	Sites     SiteChecker
}

// Runner executes publish pipelines. A Runner holds only its collaborators,
// so one instance can serve any number of concurrent publishes.
type Runner struct {
	c            Collaborators
	pollInterval time.Duration
	now          func() time.Time
}

// NewRunner creates a Runner. pollInterval is how often a running build is
// checked; zero selects the default.
func NewRunner(c Collaborators, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Runner{c: c, pollInterval: pollInterval, now: time.Now}
}

// Observer is called with a copy of the step list every time a step changes
// state.
type Observer func(steps []model.DeploymentStep)

// Result is the outcome of one publish attempt.
type Result struct {
	Success    bool                   `json:"success"`
	Steps      []model.DeploymentStep `json:"steps"`
	SiteURL    string                 `json:"site_url,omitempty"`
	BuildID    string                 `json:"build_id,omitempty"`
	FailedStep string                 `json:"failed_step,omitempty"`
	Error      string                 `json:"error,omitempty"`
	TimedOut   bool                   `json:"timed_out,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
}

type step struct {
	name  string
	fatal bool
	fn    func(ctx context.Context, r *run) ([]string, error)
}

// run carries the values earlier steps hand to later ones.
type run struct {
	cfg     Config
	repo    Repository
	project Project
	build   Build
	zoneID  string

	// report updates the message and progress of the running step.
	report func(message string, progress int)
}

func (r *Runner) plan(cfg Config) []step {
	steps := []step{
		{StepValidateConfig, true, r.validateConfig},
		{StepCreateRepository, true, r.createRepository},
		{StepPushSite, true, r.pushSite},
		{StepCreateHostingProject, true, r.createHostingProject},
	}
	if cfg.Route == model.RouteCustom {
		steps = append(steps, step{StepConfigureDNS, true, r.configureDNS})
	}
	steps = append(steps,
		step{StepAttachDomains, true, r.attachDomains},
		step{StepTriggerBuild, true, r.triggerBuild},
		step{StepAwaitBuild, true, r.awaitBuild},
	)
	if cfg.Route == model.RouteCustom {
		steps = append(steps, step{StepPurgeCache, false, r.purgeCache})
	}
	return append(steps, step{StepVerifySite, false, r.verifySite})
}

// StepNames lists the steps a publish with cfg will run, in order.
func StepNames(cfg Config) []string {
	var r Runner
	plan := r.plan(cfg)
	names := make([]string, len(plan))
	for i, s := range plan {
		names[i] = s.name
	}
	return names
}

// PendingSteps returns a fresh all-pending step list for cfg.
func PendingSteps(cfg Config) []model.DeploymentStep {
	names := StepNames(cfg)
	steps := make([]model.DeploymentStep, len(names))
	for i, name := range names {
		steps[i] = model.DeploymentStep{Name: name, Status: model.StepPending}
	}
	return steps
}

// Publish runs every step for cfg in order. The first fatal failure stops
// the pipeline; the steps after it stay pending. Failures of non-fatal steps
// are reported as warnings and do not affect Success.
func (r *Runner) Publish(ctx context.Context, cfg Config, observe Observer) Result {
	plan := r.plan(cfg)
	steps := PendingSteps(cfg)
	notify := func() {
		if observe != nil {
			observe(cloneSteps(steps))
		}
	}

	start := r.now()
	state := &run{cfg: cfg}
	var res Result

	for i, s := range plan {
		started := r.now()
		steps[i].Status = model.StepInProgress
		steps[i].StartedAt = &started
		notify()
		state.report = func(message string, progress int) {
			steps[i].Message = message
			steps[i].Progress = progress
			notify()
		}

		// No step starts once the publish deadline has passed.
		var warnings []string
		err := ctx.Err()
		if err == nil {
			warnings, err = s.fn(ctx, state)
		}
		finished := r.now()
		steps[i].FinishedAt = &finished
		steps[i].Warnings = warnings

		if err != nil && s.fatal {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = &TimeoutError{Op: "publish", After: r.budget(ctx, start)}
				res.TimedOut = true
			}
			steps[i].Status = model.StepFailed
			steps[i].Message = err.Error()
			notify()

			res.Steps = cloneSteps(steps)
			res.FailedStep = s.name
			res.Error = fmt.Sprintf("%s: %s", s.name, err)
			res.Warnings = collectWarnings(steps)
			return res
		}
		if err != nil {
			steps[i].Message = "skipped: " + err.Error()
			steps[i].Warnings = append(steps[i].Warnings, err.Error())
		}
		steps[i].Status = model.StepCompleted
		notify()
	}

	res.Success = true
	res.Steps = cloneSteps(steps)
	res.SiteURL = cfg.SiteURL()
	res.BuildID = state.build.ID
	res.Warnings = collectWarnings(steps)
	return res
}

func (r *Runner) budget(ctx context.Context, start time.Time) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return max(deadline.Sub(start), 0).Round(time.Second)
	}
	return r.now().Sub(start).Round(time.Second)
}

func (r *Runner) validateConfig(_ context.Context, st *run) ([]string, error) {
	return nil, st.cfg.Validate()
}

func (r *Runner) createRepository(ctx context.Context, st *run) ([]string, error) {
	repo, err := r.c.Repos.EnsureRepository(ctx, st.cfg.RepositoryName(), "Site for "+st.cfg.TenantSlug)
	if err != nil {
		return nil, err
	}
	st.repo = repo
	return nil, nil
}

func (r *Runner) pushSite(ctx context.Context, st *run) ([]string, error) {
	n, err := r.c.Artifacts.PublishArtifact(ctx, st.repo, st.cfg.ArtifactRef, st.cfg.CommitMessage)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("artifact %s contains no files", st.cfg.ArtifactRef)
	}
	return nil, nil
}

func (r *Runner) createHostingProject(ctx context.Context, st *run) ([]string, error) {
	project, err := r.c.Hosting.EnsureProject(ctx, st.cfg.RepositoryName(), st.repo)
	if err != nil {
		return nil, err
	}
	st.project = project

	err = r.c.Hosting.SetEnv(ctx, project.ID, map[string]string{
		"SITE_TENANT_ID": st.cfg.TenantID,
		"SITE_SLUG":      st.cfg.TenantSlug,
		"SITE_VERSION":   strconv.Itoa(st.cfg.Version),
	})
	if err != nil {
		return nil, fmt.Errorf("set project env: %w", err)
	}
	return nil, nil
}

func (r *Runner) configureDNS(ctx context.Context, st *run) ([]string, error) {
	if r.c.DNS == nil {
		return nil, errors.New("no DNS provider configured")
	}
	setup, err := r.c.DNS.FullSetup(ctx, st.cfg.PrimaryHostname, st.cfg.DNSRecords)
	if err != nil {
		return nil, err
	}
	st.zoneID = setup.ZoneID
	return setup.Failures, nil
}

func (r *Runner) attachDomains(ctx context.Context, st *run) ([]string, error) {
	for _, host := range st.cfg.Hostnames {
		if err := r.c.Hosting.AddDomain(ctx, st.project.ID, host); err != nil {
			return nil, fmt.Errorf("attach %s: %w", host, err)
		}
	}
	return nil, nil
}

func (r *Runner) triggerBuild(ctx context.Context, st *run) ([]string, error) {
	build, err := r.c.Hosting.TriggerBuild(ctx, st.project, st.repo)
	if err != nil {
		return nil, err
	}
	st.build = build
	return nil, nil
}

func (r *Runner) awaitBuild(ctx context.Context, st *run) ([]string, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	var last string

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		build, err := r.c.Hosting.GetBuild(ctx, st.build.ID)
		if err != nil {
			return nil, fmt.Errorf("get build %s: %w", st.build.ID, err)
		}
		if build.State != last {
			last = build.State
			st.report(fmt.Sprintf("build %s is %s", st.build.ID, build.State), BuildProgress(build.State))
		}
		switch MapBuildState(build.State) {
		case model.DeploymentReady:
			st.build = build
			return nil, nil
		case model.DeploymentError:
			return nil, fmt.Errorf("build %s finished in state %s", st.build.ID, build.State)
		}
		timer.Reset(r.pollInterval)
	}
}

func (r *Runner) purgeCache(ctx context.Context, st *run) ([]string, error) {
	if r.c.DNS == nil || st.zoneID == "" {
		return nil, nil
	}
	return nil, r.c.DNS.PurgeCache(ctx, st.zoneID)
}

func (r *Runner) verifySite(ctx context.Context, st *run) ([]string, error) {
	if r.c.Sites == nil {
		return nil, nil
	}
	return nil, r.c.Sites.Check(ctx, st.cfg.SiteURL())
}

func cloneSteps(steps []model.DeploymentStep) []model.DeploymentStep {
	out := make([]model.DeploymentStep, len(steps))
	for i, s := range steps {
		out[i] = s
		if s.Warnings != nil {
			out[i].Warnings = append([]string(nil), s.Warnings...)
		}
	}
	return out
}

func collectWarnings(steps []model.DeploymentStep) []string {
	var out []string
	for _, s := range steps {
		for _, w := range s.Warnings {
			out = append(out, s.Name+": "+w)
		}
	}
	return out
}
