// Package dialect provides database dialect abstraction for the SQL
// generation engine and query builder.
//
// This package defines the interfaces and types used for database-specific
// operations. SQL rendering is implemented for PostgreSQL and MySQL.
//
// # Supported Dialects
//
// The following dialects are supported:
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//
// SQLite is known only as a database/sql driver name; sql.New rejects it
// as a rendering dialect.
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite3"
//
// # Driver Interface
//
// The package defines the Driver interface for database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
// The Tx interface extends Driver with transaction methods:
//
//	type Tx interface {
//	    Driver
//	    Commit() error
//	    Rollback() error
//	}
//
// # ExecQuerier Interface
//
// The ExecQuerier interface is implemented by both Driver and Tx:
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/berkeerdo/dbbridge/dialect"
//	    "github.com/berkeerdo/dbbridge/dialect/sql"
//	)
//
//	db, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	d, err := sql.New(dialect.Postgres)
//	sel := sql.Select(d, db, "id", "name").From("users")
//
// # Sub-packages
//
// The dialect package contains one sub-package:
//
//   - dialect/sql: SQL query builders and driver implementation
package dialect
