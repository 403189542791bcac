package workflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

func TestTypeActivityError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantType     string
		nonRetryable bool
	}{
		{
			name:     "plain error gets activity name",
			err:      fmt.Errorf("connection reset"),
			wantType: "GetDomainContext",
		},
		{
			name:         "missing row is non-retryable",
			err:          fmt.Errorf("get domain dom-1: %w", pgx.ErrNoRows),
			wantType:     "NOT_FOUND",
			nonRetryable: true,
		},
		{
			name:         "typed error is kept",
			err:          temporal.NewNonRetryableApplicationError("forbidden", "PROVIDER_ERROR", nil),
			wantType:     "PROVIDER_ERROR",
			nonRetryable: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := typeActivityError("GetDomainContext", tt.err)
			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantType, appErr.Type())
			assert.Equal(t, tt.nonRetryable, appErr.NonRetryable())
		})
	}
}
