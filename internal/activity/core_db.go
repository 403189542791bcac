package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB defines the database operations used by activity structs.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CoreDB contains activities that read from and update the core database.
type CoreDB struct {
	db DB
}

// NewCoreDB creates a new CoreDB activity struct.
func NewCoreDB(db DB) *CoreDB {
	return &CoreDB{db: db}
}

// UpdateResourceStatusParams holds the parameters for UpdateResourceStatus.
type UpdateResourceStatusParams struct {
	Table         string
	ID            string
	Status        string
	StatusMessage *string
}

// statusTables lists the tables UpdateResourceStatus may touch.
var statusTables = map[string]bool{
	"domains": true,
}

// UpdateResourceStatus sets the status and status message of a resource row
// in the given table.
func (a *CoreDB) UpdateResourceStatus(ctx context.Context, params UpdateResourceStatusParams) error {
	if !statusTables[params.Table] {
		return fmt.Errorf("update resource status: unknown table %q", params.Table)
	}
	query := fmt.Sprintf("UPDATE %s SET status = $1, status_message = $2, updated_at = now() WHERE id = $3", params.Table)
	_, err := a.db.Exec(ctx, query, params.Status, params.StatusMessage, params.ID)
	if err != nil {
		return fmt.Errorf("update %s %s status: %w", params.Table, params.ID, err)
	}
	return nil
}
