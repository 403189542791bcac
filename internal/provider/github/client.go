// Package github creates site repositories from a template and commits site
// files into them through the git data API.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	gh "github.com/google/go-github/v66/github"
	"github.com/rs/zerolog"

	"github.com/edvin/sitepublish/internal/pipeline"
	"github.com/edvin/sitepublish/internal/provider"
)

const defaultBranch = "main"

type Client struct {
	gh           *gh.Client
	org          string
	templateRepo string
	logger       zerolog.Logger
}

// NewClient creates a GitHub client for repositories owned by org. New
// repositories are generated from templateRepo in the same organisation. An
// empty baseURL selects api.github.com.
func NewClient(baseURL, token, org, templateRepo string, logger zerolog.Logger) (*Client, error) {
	client := gh.NewClient(&http.Client{Timeout: 30 * time.Second}).WithAuthToken(token)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}
	return &Client{
		gh:           client,
		org:          org,
		templateRepo: templateRepo,
		logger:       logger.With().Str("component", "github").Logger(),
	}, nil
}

func toPipeline(r *gh.Repository) pipeline.Repository {
	return pipeline.Repository{
		Owner:    r.GetOwner().GetLogin(),
		Name:     r.GetName(),
		FullName: r.GetFullName(),
		URL:      r.GetHTMLURL(),
	}
}

// wrap turns a go-github error into a provider error. Rate limiting is
// reported as 429 so it stays retryable.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &provider.Error{Provider: "github", Op: op, StatusCode: http.StatusTooManyRequests, Message: rateErr.Message}
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &provider.Error{Provider: "github", Op: op, StatusCode: http.StatusTooManyRequests, Message: abuseErr.Message}
	}
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return &provider.Error{Provider: "github", Op: op, StatusCode: respErr.Response.StatusCode, Message: respErr.Message}
	}
	return fmt.Errorf("github %s: %w", op, err)
}

// EnsureRepository returns the organisation's repository called name,
// generating a private one from the template if it does not exist.
func (c *Client) EnsureRepository(ctx context.Context, name, description string) (pipeline.Repository, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, c.org, name)
	if err == nil {
		return toPipeline(repo), nil
	}
	if err = wrap("get repository", err); !provider.IsNotFound(err) {
		return pipeline.Repository{}, err
	}

	repo, _, err = c.gh.Repositories.CreateFromTemplate(ctx, c.org, c.templateRepo, &gh.TemplateRepoRequest{
		Name:               gh.String(name),
		Owner:              gh.String(c.org),
		Description:        gh.String(description),
		Private:            gh.Bool(true),
		IncludeAllBranches: gh.Bool(false),
	})
	if err != nil {
		return pipeline.Repository{}, wrap("generate repository", err)
	}
	c.logger.Info().Str("repository", repo.GetFullName()).Msg("generated repository from template")
	return toPipeline(repo), nil
}

// CommitFiles writes files onto the default branch as a single commit and
// returns its SHA. Files not listed keep their content. A repository without
// the branch gets it created with a root commit.
func (c *Client) CommitFiles(ctx context.Context, repo pipeline.Repository, files []pipeline.RepoFile, message string) (string, error) {
	owner := repo.Owner
	if owner == "" {
		owner = c.org
	}
	ref := "heads/" + defaultBranch

	var parentSHA, baseTree string
	head, _, err := c.gh.Git.GetRef(ctx, owner, repo.Name, ref)
	switch err = wrap("get ref", err); {
	case err == nil:
		parentSHA = head.GetObject().GetSHA()
		parent, _, err := c.gh.Git.GetCommit(ctx, owner, repo.Name, parentSHA)
		if err != nil {
			return "", wrap("get commit", err)
		}
		baseTree = parent.GetTree().GetSHA()
	case provider.IsNotFound(err) || provider.IsConflict(err):
		// Empty repository.
	default:
		return "", err
	}

	entries := make([]*gh.TreeEntry, 0, len(files))
	for _, f := range files {
		entry := &gh.TreeEntry{
			Path: gh.String(strings.TrimPrefix(f.Path, "/")),
			Mode: gh.String("100644"),
			Type: gh.String("blob"),
		}
		if utf8.Valid(f.Content) {
			entry.Content = gh.String(string(f.Content))
		} else {
			blob, _, err := c.gh.Git.CreateBlob(ctx, owner, repo.Name, &gh.Blob{
				Content:  gh.String(base64.StdEncoding.EncodeToString(f.Content)),
				Encoding: gh.String("base64"),
			})
			if err != nil {
				return "", wrap("create blob", err)
			}
			entry.SHA = blob.SHA
		}
		entries = append(entries, entry)
	}

	tree, _, err := c.gh.Git.CreateTree(ctx, owner, repo.Name, baseTree, entries)
	if err != nil {
		return "", wrap("create tree", err)
	}

	commit := &gh.Commit{Message: gh.String(message), Tree: &gh.Tree{SHA: tree.SHA}}
	if parentSHA != "" {
		commit.Parents = []*gh.Commit{{SHA: gh.String(parentSHA)}}
	}
	created, _, err := c.gh.Git.CreateCommit(ctx, owner, repo.Name, commit, nil)
	if err != nil {
		return "", wrap("create commit", err)
	}

	newRef := &gh.Reference{Ref: gh.String("refs/" + ref), Object: &gh.GitObject{SHA: created.SHA}}
	if parentSHA == "" {
		_, _, err = c.gh.Git.CreateRef(ctx, owner, repo.Name, newRef)
		err = wrap("create ref", err)
	} else {
		_, _, err = c.gh.Git.UpdateRef(ctx, owner, repo.Name, newRef, false)
		err = wrap("update ref", err)
	}
	if err != nil {
		return "", err
	}

	c.logger.Info().Str("repository", owner+"/"+repo.Name).Str("commit", created.GetSHA()).
		Int("files", len(files)).Msg("committed files")
	return created.GetSHA(), nil
}
