package dialect

import "context"

// Dialect name constants. Only MySQL and PostgreSQL are rendering
// dialects understood by the SQL generation engine (dialect/sql); SQLite
// is accepted here purely as a database/sql driver name for examples and
// local testing, it is never a render target.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

// ExecQuerier wraps the Exec and Query methods used by the core to talk
// to a driver connection. args is always a []any of ordered bindings; v
// is the destination the driver decodes the result into.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal "driver connection" contract the core relies on.
// A concrete database driver lives entirely outside this module and is
// supplied by the caller.
type Driver interface {
	ExecQuerier

	// Tx begins a new transaction.
	Tx(ctx context.Context) (Tx, error)

	// Close releases any resource owned by the driver.
	Close() error

	// Dialect reports which of the name constants above this driver
	// speaks.
	Dialect() string
}

// Tx is a Driver bound to a single, already-open transaction. Close on a
// Tx must not attempt to close the underlying pooled connection; it is
// released by Commit or Rollback.
type Tx interface {
	Driver

	Commit() error
	Rollback() error
}
