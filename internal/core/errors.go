package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a tenant, deployment, domain or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is returned when a tenant already has a publish
	// queued or building.
	ErrConcurrencyConflict = errors.New("a publish is already in progress for this tenant")

	// ErrConflict is returned when a unique value such as a slug or hostname is taken.
	ErrConflict = errors.New("already exists")

	// ErrDomainNotActive is returned when an operation needs a verified domain.
	ErrDomainNotActive = errors.New("domain is not active")
)

// Postgres error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const inFlightConstraint = "deployments_one_in_flight"

// mapError translates driver errors into the package's sentinel errors,
// keeping the original error in the chain.
func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == inFlightConstraint {
				return fmt.Errorf("%s: %w", op, ErrConcurrencyConflict)
			}
			return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.Detail)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
