package sql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/berkeerdo/dbbridge"
	"github.com/berkeerdo/dbbridge/cache"
	"github.com/berkeerdo/dbbridge/crypto"
	"github.com/berkeerdo/dbbridge/dialect"
)

// InsertBuilder builds and executes an INSERT statement, with optional
// upsert semantics.
type InsertBuilder struct {
	dialect Dialect
	execer  dialect.ExecQuerier
	encr    crypto.FieldEncryptor
	cache   *cache.Coordinator
	invTags []string

	table      string
	columns    []string
	rows       [][]any
	returning  []string
	ignoreDup  bool
	conflict   []string // upsert conflict target columns
	updateSet  []string // columns to update on conflict; empty + ignoreDup false means no upsert
	encryptCol map[string]bool
	err        error
}

// Insert starts a new InsertBuilder for table.
func Insert(d Dialect, ex dialect.ExecQuerier, table string) *InsertBuilder {
	b := &InsertBuilder{dialect: d, execer: ex, table: table, encr: crypto.NoopEncryptor{}, encryptCol: map[string]bool{}}
	if !IsValidIdentifier(table) {
		b.err = dbbridge.NewInvalidIdentifierError(table)
	}
	return b
}

// WithEncryptor installs the field encryption collaborator used by
// EncryptFields.
func (b *InsertBuilder) WithEncryptor(e crypto.FieldEncryptor) *InsertBuilder {
	b.encr = e
	return b
}

// InvalidatesCache registers a cache coordinator and tags to invalidate
// after a successful Exec.
func (b *InsertBuilder) InvalidatesCache(co *cache.Coordinator, tags ...string) *InsertBuilder {
	b.cache = co
	b.invTags = tags
	return b
}

// EncryptFields marks columns whose values must be run through the
// configured FieldEncryptor before binding.
func (b *InsertBuilder) EncryptFields(columns ...string) *InsertBuilder {
	for _, c := range columns {
		b.encryptCol[c] = true
	}
	return b
}

// Columns sets the column order for subsequent Values calls.
func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = columns
	return b
}

// Values appends one row of values, positional to Columns.
func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.rows = append(b.rows, values)
	return b
}

// OnConflictIgnore makes the insert a no-op for conflicting rows
// (MySQL INSERT IGNORE / Postgres ON CONFLICT DO NOTHING).
func (b *InsertBuilder) OnConflictIgnore() *InsertBuilder {
	b.ignoreDup = true
	return b
}

// OnConflictUpdate makes the insert an upsert: conflictCols identify the
// unique constraint (used by PostgreSQL's ON CONFLICT target; ignored by
// MySQL which keys off the table's constraints implicitly), and
// updateCols are the columns to overwrite with the incoming values
// (MySQL ON DUPLICATE KEY UPDATE / Postgres ON CONFLICT ... DO UPDATE).
func (b *InsertBuilder) OnConflictUpdate(conflictCols, updateCols []string) *InsertBuilder {
	b.conflict = conflictCols
	b.updateSet = updateCols
	return b
}

// Returning requests RETURNING columns (PostgreSQL only; silently
// ignored for MySQL, which has no equivalent).
func (b *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	b.returning = columns
	return b
}

// Build renders the INSERT statement and bind arguments.
func (b *InsertBuilder) Build(ctx context.Context) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if b.table == "" || len(b.columns) == 0 || len(b.rows) == 0 {
		return "", nil, fmt.Errorf("dialect/sql: insert requires table, columns and at least one row")
	}
	b.dialect.ResetPlaceholders()

	var args []any
	var sb strings.Builder
	verb := "INSERT INTO "
	if b.ignoreDup && b.dialect.Name() == dialect.MySQL {
		verb = "INSERT IGNORE INTO "
	}
	sb.WriteString(verb)
	sb.WriteString(b.dialect.EscapeIdentifier(b.table))
	sb.WriteString(" (")
	cols := make([]string, len(b.columns))
	for i, c := range b.columns {
		cols[i] = b.dialect.EscapeIdentifier(c)
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES ")

	rowStrs := make([]string, len(b.rows))
	for ri, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, fmt.Errorf("dialect/sql: row %d has %d values, expected %d", ri, len(row), len(b.columns))
		}
		marks := make([]string, len(row))
		for ci, v := range row {
			if b.encryptCol[b.columns[ci]] {
				if s, ok := v.(string); ok {
					enc, err := b.encr.EncryptField(ctx, b.columns[ci], s)
					if err != nil {
						return "", nil, fmt.Errorf("dialect/sql: encrypt field %s: %w", b.columns[ci], err)
					}
					v = enc
				}
			}
			marks[ci] = b.dialect.NextPlaceholder()
			args = append(args, v)
		}
		rowStrs[ri] = "(" + strings.Join(marks, ", ") + ")"
	}
	sb.WriteString(strings.Join(rowStrs, ", "))

	switch {
	case len(b.updateSet) > 0 && b.dialect.Name() == dialect.MySQL:
		sb.WriteString(" ON DUPLICATE KEY UPDATE ")
		parts := make([]string, len(b.updateSet))
		for i, c := range b.updateSet {
			id := b.dialect.EscapeIdentifier(c)
			parts[i] = fmt.Sprintf("%s = VALUES(%s)", id, id)
		}
		sb.WriteString(strings.Join(parts, ", "))

	case len(b.updateSet) > 0:
		sb.WriteString(" ON CONFLICT (")
		ccols := make([]string, len(b.conflict))
		for i, c := range b.conflict {
			ccols[i] = b.dialect.EscapeIdentifier(c)
		}
		sb.WriteString(strings.Join(ccols, ", "))
		sb.WriteString(") DO UPDATE SET ")
		parts := make([]string, len(b.updateSet))
		for i, c := range b.updateSet {
			id := b.dialect.EscapeIdentifier(c)
			parts[i] = fmt.Sprintf("%s = EXCLUDED.%s", id, id)
		}
		sb.WriteString(strings.Join(parts, ", "))

	case b.ignoreDup && b.dialect.Name() != dialect.MySQL:
		sb.WriteString(" ON CONFLICT DO NOTHING")
	}

	if len(b.returning) > 0 && b.dialect.Name() != dialect.MySQL {
		rcols := make([]string, len(b.returning))
		for i, c := range b.returning {
			rcols[i] = b.dialect.EscapeIdentifier(c)
		}
		sb.WriteString(" RETURNING " + strings.Join(rcols, ", "))
	}
	return sb.String(), args, nil
}

// Exec runs the insert. If Returning columns were requested on
// PostgreSQL, dest receives the returned rows (a pointer to a slice of
// structs or map[string]any); otherwise pass nil.
func (b *InsertBuilder) Exec(ctx context.Context, dest any) error {
	sqlStr, args, err := b.Build(ctx)
	if err != nil {
		return err
	}
	if len(b.returning) > 0 && b.dialect.Name() != dialect.MySQL && dest != nil {
		var rows Rows
		if err := b.execer.Query(ctx, sqlStr, args, &rows); err != nil {
			return &dbbridge.QueryError{Entity: b.table, Op: "insert", SQL: sqlStr, Bindings: args, Err: err}
		}
		defer rows.Close()
		if err := scanAll(rows, dest); err != nil {
			return &dbbridge.QueryError{Entity: b.table, Op: "insert", SQL: sqlStr, Bindings: args, Err: err}
		}
	} else if err := b.execer.Exec(ctx, sqlStr, args, nil); err != nil {
		return &dbbridge.QueryError{Entity: b.table, Op: "insert", SQL: sqlStr, Bindings: args, Err: err}
	}
	if b.cache != nil {
		if err := b.cache.InvalidateWrite(ctx, sqlStr); err != nil {
			return err
		}
		for _, tag := range b.invTags {
			if err := b.cache.InvalidateByTag(ctx, tag); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateBuilder builds and executes an UPDATE statement.
type UpdateBuilder struct {
	dialect Dialect
	execer  dialect.ExecQuerier
	encr    crypto.FieldEncryptor
	cache   *cache.Coordinator
	invTags []string

	table      string
	set        map[string]any
	where      whereAssembler
	returning  []string
	encryptCol map[string]bool
	err        error
}

// Update starts a new UpdateBuilder for table.
func Update(d Dialect, ex dialect.ExecQuerier, table string) *UpdateBuilder {
	b := &UpdateBuilder{dialect: d, execer: ex, table: table, set: map[string]any{}, encr: crypto.NoopEncryptor{}, encryptCol: map[string]bool{}}
	if !IsValidIdentifier(table) {
		b.err = dbbridge.NewInvalidIdentifierError(table)
	}
	return b
}

func (b *UpdateBuilder) WithEncryptor(e crypto.FieldEncryptor) *UpdateBuilder {
	b.encr = e
	return b
}

func (b *UpdateBuilder) InvalidatesCache(co *cache.Coordinator, tags ...string) *UpdateBuilder {
	b.cache = co
	b.invTags = tags
	return b
}

func (b *UpdateBuilder) EncryptFields(columns ...string) *UpdateBuilder {
	for _, c := range columns {
		b.encryptCol[c] = true
	}
	return b
}

// Set merges column/value pairs into the SET clause.
func (b *UpdateBuilder) Set(values map[string]any) *UpdateBuilder {
	for k, v := range values {
		b.set[k] = v
	}
	return b
}

func (b *UpdateBuilder) Where(preds ...*predicate) *UpdateBuilder {
	for _, p := range preds {
		if p != nil {
			b.where.add(*p)
		}
	}
	return b
}

func (b *UpdateBuilder) Returning(columns ...string) *UpdateBuilder {
	b.returning = columns
	return b
}

// Build renders the UPDATE statement and bind arguments.
func (b *UpdateBuilder) Build(ctx context.Context) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if b.table == "" || len(b.set) == 0 {
		return "", nil, fmt.Errorf("dialect/sql: update requires table and at least one set() value")
	}
	b.dialect.ResetPlaceholders()

	keys := make([]string, 0, len(b.set))
	for k := range b.set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	var args []any
	sb.WriteString("UPDATE ")
	sb.WriteString(b.dialect.EscapeIdentifier(b.table))
	sb.WriteString(" SET ")
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := b.set[k]
		if b.encryptCol[k] {
			if s, ok := v.(string); ok {
				enc, err := b.encr.EncryptField(ctx, k, s)
				if err != nil {
					return "", nil, fmt.Errorf("dialect/sql: encrypt field %s: %w", k, err)
				}
				v = enc
			}
		}
		parts[i] = fmt.Sprintf("%s = %s", b.dialect.EscapeIdentifier(k), b.dialect.NextPlaceholder())
		args = append(args, v)
	}
	sb.WriteString(strings.Join(parts, ", "))

	if !b.where.empty() {
		frag, wargs, err := b.where.render(b.dialect)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE " + frag)
		args = append(args, wargs...)
	}
	if len(b.returning) > 0 && b.dialect.Name() != dialect.MySQL {
		rcols := make([]string, len(b.returning))
		for i, c := range b.returning {
			rcols[i] = b.dialect.EscapeIdentifier(c)
		}
		sb.WriteString(" RETURNING " + strings.Join(rcols, ", "))
	}
	return sb.String(), args, nil
}

// Exec runs the update. When Returning columns were requested on
// PostgreSQL, dest receives the returned rows; pass nil otherwise. The
// decryptCols are run through the configured FieldEncryptor's
// DecryptField for each returned row, suppressing per-field decryption
// failures.
func (b *UpdateBuilder) Exec(ctx context.Context, dest any, decryptCols ...string) error {
	sqlStr, args, err := b.Build(ctx)
	if err != nil {
		return err
	}
	if len(b.returning) > 0 && b.dialect.Name() != dialect.MySQL && dest != nil {
		var rows Rows
		if err := b.execer.Query(ctx, sqlStr, args, &rows); err != nil {
			return &dbbridge.QueryError{Entity: b.table, Op: "update", SQL: sqlStr, Bindings: args, Err: err}
		}
		defer rows.Close()
		if err := scanAll(rows, dest); err != nil {
			return &dbbridge.QueryError{Entity: b.table, Op: "update", SQL: sqlStr, Bindings: args, Err: err}
		}
		decryptDest(ctx, b.encr, dest, decryptCols)
	} else if err := b.execer.Exec(ctx, sqlStr, args, nil); err != nil {
		return &dbbridge.QueryError{Entity: b.table, Op: "update", SQL: sqlStr, Bindings: args, Err: err}
	}
	if b.cache != nil {
		if err := b.cache.InvalidateWrite(ctx, sqlStr); err != nil {
			return err
		}
		for _, tag := range b.invTags {
			if err := b.cache.InvalidateByTag(ctx, tag); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteBuilder builds and executes a DELETE statement.
type DeleteBuilder struct {
	dialect Dialect
	execer  dialect.ExecQuerier
	cache   *cache.Coordinator
	invTags []string

	table    string
	where    whereAssembler
	truncate bool
	force    bool
	err      error
}

// Delete starts a new DeleteBuilder for table.
func Delete(d Dialect, ex dialect.ExecQuerier, table string) *DeleteBuilder {
	b := &DeleteBuilder{dialect: d, execer: ex, table: table}
	if !IsValidIdentifier(table) {
		b.err = dbbridge.NewInvalidIdentifierError(table)
	}
	return b
}

func (b *DeleteBuilder) InvalidatesCache(co *cache.Coordinator, tags ...string) *DeleteBuilder {
	b.cache = co
	b.invTags = tags
	return b
}

func (b *DeleteBuilder) Where(preds ...*predicate) *DeleteBuilder {
	for _, p := range preds {
		if p != nil {
			b.where.add(*p)
		}
	}
	return b
}

// Force allows a DELETE with no WHERE clause to proceed. Without it,
// Build rejects an unconditioned delete.
func (b *DeleteBuilder) Force() *DeleteBuilder {
	b.force = true
	return b
}

// Truncate switches to TRUNCATE TABLE, which ignores any WHERE clause.
func (b *DeleteBuilder) Truncate() *DeleteBuilder {
	b.truncate = true
	return b
}

// Build renders the DELETE (or TRUNCATE) statement and bind arguments.
func (b *DeleteBuilder) Build() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if b.table == "" {
		return "", nil, fmt.Errorf("dialect/sql: delete requires a table")
	}
	if b.truncate {
		return "TRUNCATE TABLE " + b.dialect.EscapeIdentifier(b.table), nil, nil
	}
	b.dialect.ResetPlaceholders()
	if b.where.empty() && !b.force {
		return "", nil, dbbridge.NewUnsafeDeleteError(b.table)
	}
	var sb strings.Builder
	var args []any
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.dialect.EscapeIdentifier(b.table))
	if !b.where.empty() {
		frag, wargs, err := b.where.render(b.dialect)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE " + frag)
		args = append(args, wargs...)
	}
	return sb.String(), args, nil
}

// Exec runs the delete.
func (b *DeleteBuilder) Exec(ctx context.Context) error {
	sqlStr, args, err := b.Build()
	if err != nil {
		return err
	}
	if err := b.execer.Exec(ctx, sqlStr, args, nil); err != nil {
		return &dbbridge.QueryError{Entity: b.table, Op: "delete", SQL: sqlStr, Bindings: args, Err: err}
	}
	if b.cache != nil {
		if err := b.cache.InvalidateWrite(ctx, sqlStr); err != nil {
			return err
		}
		for _, tag := range b.invTags {
			if err := b.cache.InvalidateByTag(ctx, tag); err != nil {
				return err
			}
		}
	}
	return nil
}
