package publishctl

import (
	"context"
	"time"

	"github.com/edvin/sitepublish/internal/api/handler"
	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/poller"
)

// WaitOptions controls how often and for how long a wait polls.
type WaitOptions struct {
	Interval time.Duration
	// Timeout of zero waits until ctx is done.
	Timeout time.Duration
}

// WaitForDeployment polls a deployment until it is ready or failed. onUpdate
// sees every snapshot. Giving up, by timeout or by cancelling ctx, stops
// waiting only; the publish carries on.
func (c *Client) WaitForDeployment(ctx context.Context, deploymentID string, opts WaitOptions, onUpdate func(handler.PublishStatus)) (handler.PublishStatus, error) {
	fetch := func(ctx context.Context) (handler.PublishStatus, error) {
		s, err := c.PublishStatus(ctx, deploymentID)
		if err != nil {
			return handler.PublishStatus{}, err
		}
		return *s, nil
	}
	return poller.Poll(ctx, fetch, poller.Options[handler.PublishStatus]{
		Interval: opts.Interval,
		Timeout:  opts.Timeout,
		IsTerminal: func(s handler.PublishStatus) bool {
			return model.IsTerminalDeploymentStatus(s.Status)
		},
		OnUpdate: onUpdate,
	})
}

// WaitForDomain polls a domain until verification settles on active or failed.
func (c *Client) WaitForDomain(ctx context.Context, domainID string, opts WaitOptions, onUpdate func(handler.VerificationResponse)) (handler.VerificationResponse, error) {
	fetch := func(ctx context.Context) (handler.VerificationResponse, error) {
		v, err := c.DomainVerification(ctx, domainID)
		if err != nil {
			return handler.VerificationResponse{}, err
		}
		return *v, nil
	}
	return poller.Poll(ctx, fetch, poller.Options[handler.VerificationResponse]{
		Interval: opts.Interval,
		Timeout:  opts.Timeout,
		IsTerminal: func(v handler.VerificationResponse) bool {
			return v.Status == model.DomainActive || v.Status == model.DomainFailed
		},
		OnUpdate: onUpdate,
	})
}
