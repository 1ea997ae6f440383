// Package sql provides SQL query building primitives and database dialect
// abstraction.
//
// This package is the foundation for rendering and executing SQL queries
// across different database dialects (PostgreSQL and MySQL). It provides
// a fluent API for constructing parameterized SQL statements without a
// code generator or schema reflection step.
//
// # Builder Types
//
// The package provides specialized builders for different SQL operations:
//
//   - Dialect: the identifier/value escaping and placeholder primitives
//     each database dialect implements (New picks MySQL or PostgreSQL)
//   - Selector: SELECT query builder with joins, predicates, pagination
//     and terminal operations (Get, First, Count, Paginate, Chunk, …)
//   - InsertBuilder: INSERT statement builder with upsert and RETURNING
//   - UpdateBuilder: UPDATE statement builder with merge-set semantics
//   - DeleteBuilder: DELETE statement builder with a force flag guarding
//     unconditioned deletes
//
// # Dialect Support
//
//	import (
//	    "github.com/berkeerdo/dbbridge/dialect"
//	    "github.com/berkeerdo/dbbridge/dialect/sql"
//	)
//
//	d, err := sql.New(dialect.Postgres) // or dialect.MySQL
//	sel := sql.Select(d, conn, "id", "name").From("users")
//
// # Predicates
//
// The package provides predicate constructors used by Selector.Where,
// plus a generic FieldEQ/FieldIn/… family that returns func(*Selector)
// closures for composing reusable, scope-qualified filters:
//
//	sql.EQ("name", "john")                  // name = ?
//	sql.NEQ("status", "deleted")            // status <> ?
//	sql.GT("age", 18)                       // age > ?
//	sql.Contains("name", "john")            // name LIKE '%john%'
//	sql.HasPrefix("email", "admin")         // email LIKE 'admin%'
//	sql.IsNull("deleted_at")                // deleted_at IS NULL
//	sql.In("status", "active", "pending")   // status IN (?, ?)
//
// # Joins
//
//	sql.Select(d, conn, "u.id", "u.name", "p.title").
//	    From("users", "u").
//	    Join("posts", "p", "p.user_id = u.id").
//	    Where(sql.EQ("u.status", "active"))
//
// # Pagination
//
//	sel.ForPage(2, 20)        // LIMIT 20 OFFSET 20
//	sel.Paginate(ctx, 2, 20)  // runs Count and the bounded Get together
//
// # Caching
//
// A Selector can read through a cache.Coordinator; INSERT/UPDATE/DELETE
// builders can invalidate it on a successful write:
//
//	sel.Cached(coordinator, cache.SetOptions{TTL: time.Minute})
//	ins.InvalidatesCache(coordinator, "table:users")
package sql
