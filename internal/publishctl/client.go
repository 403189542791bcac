// Package publishctl is the client side of the publishctl command: an API
// client, the saved profile and the --wait loops.
package publishctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/edvin/sitepublish/internal/api/handler"
	"github.com/edvin/sitepublish/internal/model"
)

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// APIError is a non-2xx answer from core-api.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/api/v1"+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return fmt.Errorf("%s %s: %w", method, path, &APIError{StatusCode: resp.StatusCode, Message: msg})
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// StartPublish queues a publish of the tenant's current artifact.
func (c *Client) StartPublish(ctx context.Context, tenantID, commitMessage string) (*handler.StartPublishResponse, error) {
	var out handler.StartPublishResponse
	body := map[string]string{"commit_message": commitMessage}
	if err := c.do(ctx, http.MethodPost, "/tenants/"+url.PathEscape(tenantID)+"/deployments", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PublishStatus(ctx context.Context, deploymentID string) (*handler.PublishStatus, error) {
	var out handler.PublishStatus
	if err := c.do(ctx, http.MethodGet, "/deployments/"+url.PathEscape(deploymentID)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns one page of the tenant's deployments, newest first, and
// the cursor of the next page.
func (c *Client) History(ctx context.Context, tenantID string, limit int, cursor string) ([]model.Deployment, string, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/tenants/" + url.PathEscape(tenantID) + "/deployments"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page struct {
		Items      []model.Deployment `json:"items"`
		NextCursor string             `json:"next_cursor"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, "", err
	}
	return page.Items, page.NextCursor, nil
}

func (c *Client) ConnectDomain(ctx context.Context, tenantID, hostname string) (*handler.ConnectDomainResponse, error) {
	var out handler.ConnectDomainResponse
	body := map[string]string{"hostname": hostname}
	if err := c.do(ctx, http.MethodPost, "/tenants/"+url.PathEscape(tenantID)+"/domains", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyDomain starts verification and returns the domain status it left.
func (c *Client) VerifyDomain(ctx context.Context, domainID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/domains/"+url.PathEscape(domainID)+"/verify", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) DomainVerification(ctx context.Context, domainID string) (*handler.VerificationResponse, error) {
	var out handler.VerificationResponse
	if err := c.do(ctx, http.MethodGet, "/domains/"+url.PathEscape(domainID)+"/verification", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetPrimaryDomain(ctx context.Context, domainID string) (*model.Domain, error) {
	var out model.Domain
	if err := c.do(ctx, http.MethodPost, "/domains/"+url.PathEscape(domainID)+"/primary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
