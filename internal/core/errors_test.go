package core

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"in-flight publish", pgError(pgUniqueViolation, inFlightConstraint), ErrConcurrencyConflict},
		{"other unique", pgError(pgUniqueViolation, "domains_hostname_key"), ErrConflict},
		{"missing parent", pgError(pgForeignKeyViolation, "domains_tenant_id_fkey"), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("op", tt.err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMapError_PassesThrough(t *testing.T) {
	base := errors.New("connection reset")
	err := mapError("insert deployment", base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "insert deployment: connection reset", err.Error())
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMapError_ConflictDetail(t *testing.T) {
	err := mapError("insert domain acmemotors.com", pgError(pgUniqueViolation, "domains_hostname_key"))
	assert.Equal(t, "insert domain acmemotors.com: already exists: Key already exists.", err.Error())
}
