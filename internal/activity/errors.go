package activity

import (
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/sitepublish/internal/provider"
)

// providerError marks provider errors that retrying cannot fix as
// non-retryable so Temporal stops after the first attempt.
func providerError(err error) error {
	if err == nil {
		return nil
	}
	if provider.IsPermanent(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "PROVIDER_ERROR", err)
	}
	return err
}
