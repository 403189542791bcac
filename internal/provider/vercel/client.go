// Package vercel drives the Vercel REST API: projects, environment
// variables, domains and git-sourced deployments.
package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/sitepublish/internal/pipeline"
	"github.com/edvin/sitepublish/internal/provider"
)

const DefaultBaseURL = "https://api.vercel.com"

// Framework preset applied to newly created projects.
const defaultFramework = "nextjs"

var envTargets = []string{"production", "preview", "development"}

type Client struct {
	baseURL    string
	token      string
	teamID     string
	githubOrg  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Vercel client. githubOrg is the organisation owning the
// site repositories that builds are sourced from.
func NewClient(baseURL, token, teamID, githubOrg string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		teamID:     teamID,
		githubOrg:  githubOrg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "vercel").Logger(),
	}
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type deployment struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	ReadyState string `json:"readyState"`
	State      string `json:"state"`
}

func (d deployment) build() pipeline.Build {
	state := d.ReadyState
	if state == "" {
		state = d.State
	}
	return pipeline.Build{ID: d.ID, URL: d.URL, State: state}
}

func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.teamID != "" {
		query.Set("teamId", c.teamID)
	}
	if len(query) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + query.Encode()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}

	if resp.StatusCode >= 300 {
		msg := string(respBody)
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Code + ": " + apiErr.Error.Message
		}
		return &provider.Error{Provider: "vercel", Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
	}
	return nil
}

// EnsureProject returns the project called name, creating it linked to repo
// if it does not exist yet.
func (c *Client) EnsureProject(ctx context.Context, name string, repo pipeline.Repository) (pipeline.Project, error) {
	var p project
	err := c.do(ctx, "get project", http.MethodGet, "/v9/projects/"+url.PathEscape(name), nil, nil, &p)
	if err == nil {
		return pipeline.Project{ID: p.ID, Name: p.Name}, nil
	}
	if !provider.IsNotFound(err) {
		return pipeline.Project{}, err
	}

	payload := map[string]any{
		"name":      name,
		"framework": defaultFramework,
		"gitRepository": map[string]string{
			"type": "github",
			"repo": repo.FullName,
		},
	}
	if err := c.do(ctx, "create project", http.MethodPost, "/v10/projects", nil, payload, &p); err != nil {
		return pipeline.Project{}, err
	}
	c.logger.Info().Str("project", p.Name).Str("project_id", p.ID).Msg("created project")
	return pipeline.Project{ID: p.ID, Name: p.Name}, nil
}

// SetEnv upserts encrypted environment variables for every target.
func (c *Client) SetEnv(ctx context.Context, projectID string, vars map[string]string) error {
	if len(vars) == 0 {
		return nil
	}
	payload := make([]map[string]any, 0, len(vars))
	for k, v := range vars {
		payload = append(payload, map[string]any{
			"key":    k,
			"value":  v,
			"type":   "encrypted",
			"target": envTargets,
		})
	}
	q := url.Values{"upsert": []string{"true"}}
	return c.do(ctx, "set env", http.MethodPost, "/v10/projects/"+url.PathEscape(projectID)+"/env", q, payload, nil)
}

// AddDomain attaches hostname to the project. A domain that is already
// attached is not an error.
func (c *Client) AddDomain(ctx context.Context, projectID, hostname string) error {
	err := c.do(ctx, "add domain", http.MethodPost, "/v10/projects/"+url.PathEscape(projectID)+"/domains", nil,
		map[string]string{"name": hostname}, nil)
	if provider.IsConflict(err) {
		c.logger.Debug().Str("hostname", hostname).Msg("domain already attached")
		return nil
	}
	return err
}

// TriggerBuild starts a production deployment from the default branch of repo.
func (c *Client) TriggerBuild(ctx context.Context, p pipeline.Project, repo pipeline.Repository) (pipeline.Build, error) {
	org := repo.Owner
	if org == "" {
		org = c.githubOrg
	}
	payload := map[string]any{
		"name":    p.Name,
		"project": p.ID,
		"target":  "production",
		"gitSource": map[string]string{
			"type": "github",
			"org":  org,
			"repo": repo.Name,
			"ref":  "main",
		},
	}
	var d deployment
	if err := c.do(ctx, "trigger build", http.MethodPost, "/v13/deployments", nil, payload, &d); err != nil {
		return pipeline.Build{}, err
	}
	return d.build(), nil
}

// GetBuild fetches the current state of a deployment.
func (c *Client) GetBuild(ctx context.Context, buildID string) (pipeline.Build, error) {
	var d deployment
	if err := c.do(ctx, "get build", http.MethodGet, "/v13/deployments/"+url.PathEscape(buildID), nil, nil, &d); err != nil {
		return pipeline.Build{}, err
	}
	return d.build(), nil
}
