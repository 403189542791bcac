// Package sitecheck checks a published site over HTTP.
package sitecheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edvin/sitepublish/internal/provider"
)

type Checker struct {
	httpClient *http.Client
}

// NewChecker creates a Checker whose requests give up after timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Checker{httpClient: &http.Client{Timeout: timeout}}
}

// Check fetches url and fails unless the response status is below 400.
func (c *Checker) Check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("check site request: %w", err)
	}
	req.Header.Set("User-Agent", "sitepublish-verify/1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("check site %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return &provider.Error{Provider: "site", Op: "check " + url, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}
