package sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/berkeerdo/dbbridge"
	"github.com/berkeerdo/dbbridge/cache"
	"github.com/berkeerdo/dbbridge/crypto"
	"github.com/berkeerdo/dbbridge/dialect"
)

type orderClause struct {
	column string
	desc   bool
}

type joinClause struct {
	kind  string // INNER, LEFT, RIGHT
	table string
	alias string
	on    string
}

// cachePlan holds the optional Selector + cache coordinator wiring: a
// Selector may be told to read through a cache.Coordinator, keyed by
// the rendered SQL + bindings fingerprint.
type cachePlan struct {
	co   *cache.Coordinator
	opts cache.SetOptions
	keyPrefix string
}

// Selector builds and executes a SELECT statement. The zero value is not
// usable; construct one with Select.
type Selector struct {
	dialect Dialect
	execer  dialect.ExecQuerier
	cache   *cachePlan
	encr    crypto.FieldEncryptor

	table      string
	alias      string
	columns    []string
	distinct   bool
	joins      []joinClause
	where      whereAssembler
	groupBy    []string
	having     whereAssembler
	order      []orderClause
	limitN     *int
	offsetN    *int
	decryptCol []string

	err error
}

// Select starts a new Selector for the given dialect (one of
// dialect.MySQL or dialect.Postgres) executing through ex.
func Select(d Dialect, ex dialect.ExecQuerier, columns ...string) *Selector {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	return &Selector{dialect: d, execer: ex, columns: columns, encr: crypto.NoopEncryptor{}}
}

// WithEncryptor installs the field encryption collaborator used by
// Decrypt.
func (s *Selector) WithEncryptor(e crypto.FieldEncryptor) *Selector {
	s.encr = e
	return s
}

// Decrypt marks columns whose scanned values must be run through the
// configured FieldEncryptor's DecryptField after a successful Get/First.
// Only string-valued fields are attempted; a failed decryption (wrong
// key, corrupt payload, legacy unencrypted row) leaves the original
// value in place rather than failing the query.
func (s *Selector) Decrypt(columns ...string) *Selector {
	s.decryptCol = append(s.decryptCol, columns...)
	return s
}

// setIdentifierErr records the first invalid-identifier error
// encountered while building the query; Build returns it before
// rendering any SQL.
func (s *Selector) setIdentifierErr(name string) {
	if s.err == nil && !IsValidIdentifier(name) {
		s.err = dbbridge.NewInvalidIdentifierError(name)
	}
}

// Clone returns an independent copy of s; mutating the clone never
// affects the original.
func (s *Selector) Clone() *Selector {
	if s == nil {
		return nil
	}
	c := *s
	c.columns = append([]string(nil), s.columns...)
	c.joins = append([]joinClause(nil), s.joins...)
	c.where.preds = append([]predicate(nil), s.where.preds...)
	c.groupBy = append([]string(nil), s.groupBy...)
	c.having.preds = append([]predicate(nil), s.having.preds...)
	c.order = append([]orderClause(nil), s.order...)
	return &c
}

// From sets the source table and, optionally, its alias.
func (s *Selector) From(table string, alias ...string) *Selector {
	s.setIdentifierErr(table)
	s.table = table
	if len(alias) > 0 {
		s.setIdentifierErr(alias[0])
		s.alias = alias[0]
	}
	return s
}

// Distinct marks the selection as DISTINCT.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// C qualifies name with the selector's current table alias (or table, if
// no alias was set), so the same Field constant works across joins and
// subqueries. This is the function the FieldEQ/FieldIn/… closures call
// before building every predicate.
func (s *Selector) C(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	if s.alias != "" {
		return s.alias + "." + name
	}
	if s.table != "" {
		return s.table + "." + name
	}
	return name
}

// Join appends an INNER JOIN clause.
func (s *Selector) Join(table, alias, on string) *Selector {
	s.setIdentifierErr(table)
	if alias != "" {
		s.setIdentifierErr(alias)
	}
	s.joins = append(s.joins, joinClause{kind: "INNER", table: table, alias: alias, on: on})
	return s
}

// LeftJoin appends a LEFT JOIN clause.
func (s *Selector) LeftJoin(table, alias, on string) *Selector {
	s.setIdentifierErr(table)
	if alias != "" {
		s.setIdentifierErr(alias)
	}
	s.joins = append(s.joins, joinClause{kind: "LEFT", table: table, alias: alias, on: on})
	return s
}

// Where appends one or more predicates, AND-joined with whatever is
// already present.
func (s *Selector) Where(preds ...*predicate) *Selector {
	for _, p := range preds {
		if p == nil {
			continue
		}
		s.where.add(*p)
	}
	return s
}

// Apply runs each filter closure against s in order, letting callers
// compose reusable scopes built from the FieldEQ/FieldIn/… family.
func (s *Selector) Apply(filters ...func(*Selector)) *Selector {
	for _, f := range filters {
		if f != nil {
			f(s)
		}
	}
	return s
}

// OrWhere appends a predicate joined with OR instead of AND.
func (s *Selector) OrWhere(p *predicate) *Selector {
	if p == nil {
		return s
	}
	cp := *p
	cp.conj = Or
	s.where.add(cp)
	return s
}

// WhereMap appends an Object condition: every key/value pair is
// equality matched and AND-joined in the order given (a nil value
// renders IS NULL).
func (s *Selector) WhereMap(pairs ...KV) *Selector {
	s.where.add(predicate{kind: condObject, object: pairs})
	return s
}

// WhereRaw appends a raw SQL fragment with its own bind arguments. The
// fragment is emitted verbatim; the caller is responsible for using
// placeholders appropriate to the dialect.
func (s *Selector) WhereRaw(fragment string, args ...any) *Selector {
	s.where.add(predicate{kind: condRaw, rawSQL: fragment, rawArgs: args})
	return s
}

// WhereNull and WhereNotNull append IS [NOT] NULL conditions.
func (s *Selector) WhereNull(column string) *Selector    { return s.Where(IsNull(s.C(column))) }
func (s *Selector) WhereNotNull(column string) *Selector { return s.Where(NotNull(s.C(column))) }

// WhereIn and WhereNotIn append IN / NOT IN conditions.
func (s *Selector) WhereIn(column string, vs ...any) *Selector {
	return s.Where(In(s.C(column), vs...))
}
func (s *Selector) WhereNotIn(column string, vs ...any) *Selector {
	return s.Where(NotIn(s.C(column), vs...))
}

// WhereBetween and WhereNotBetween append BETWEEN / NOT BETWEEN
// conditions.
func (s *Selector) WhereBetween(column string, lo, hi any) *Selector {
	return s.Where(Between(column, lo, hi))
}
func (s *Selector) WhereNotBetween(column string, lo, hi any) *Selector {
	return s.Where(NotBetween(column, lo, hi))
}

// WhereLike and WhereNotLike append LIKE / NOT LIKE conditions using the
// pattern verbatim (callers add their own % wildcards).
func (s *Selector) WhereLike(column, pattern string) *Selector {
	s.where.add(predicate{kind: condLike, column: s.C(column), pattern: pattern})
	return s
}
func (s *Selector) WhereNotLike(column, pattern string) *Selector {
	s.where.add(predicate{kind: condLike, column: s.C(column), pattern: pattern, negate: true})
	return s
}

// GroupBy appends GROUP BY columns.
func (s *Selector) GroupBy(columns ...string) *Selector {
	for _, c := range columns {
		s.setIdentifierErr(c)
	}
	s.groupBy = append(s.groupBy, columns...)
	return s
}

// Having appends a HAVING predicate.
func (s *Selector) Having(p *predicate) *Selector {
	if p != nil {
		s.having.add(*p)
	}
	return s
}

// OrderBy appends an ascending ORDER BY column.
func (s *Selector) OrderBy(column string) *Selector {
	s.order = append(s.order, orderClause{column: column})
	return s
}

// OrderByDesc appends a descending ORDER BY column.
func (s *Selector) OrderByDesc(column string) *Selector {
	s.order = append(s.order, orderClause{column: column, desc: true})
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limitN = &n
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offsetN = &n
	return s
}

// Skip and Take are Selector.Offset/Limit aliases matching the fluent
// vocabulary used elsewhere in the query builder.
func (s *Selector) Skip(n int) *Selector { return s.Offset(n) }
func (s *Selector) Take(n int) *Selector { return s.Limit(n) }

// ForPage sets Limit/Offset from a 1-indexed page number and page size.
func (s *Selector) ForPage(page, perPage int) *Selector {
	if page < 1 {
		page = 1
	}
	return s.Limit(perPage).Offset((page - 1) * perPage)
}

// Cached enables read-through caching, keyed by the rendered SQL and
// bind arguments. It applies to the terminal operations that run through
// query (Get, Sole, Pluck, PluckKeyValue, Chunk, Lazy and the rows of
// Paginate); First and the Count/Sum/Avg/Min/Max aggregates always query
// the database.
func (s *Selector) Cached(co *cache.Coordinator, opts cache.SetOptions) *Selector {
	s.cache = &cachePlan{co: co, opts: opts, keyPrefix: "sel:"}
	return s
}

// Build renders the SELECT statement and its bind arguments.
func (s *Selector) Build() (string, []any, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	if s.table == "" {
		return "", nil, fmt.Errorf("dialect/sql: selector has no source table")
	}
	s.dialect.ResetPlaceholders()

	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	if s.distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(s.renderColumns())
	sb.WriteString(" FROM ")
	sb.WriteString(s.dialect.EscapeIdentifier(s.table))
	if s.alias != "" {
		sb.WriteString(" AS " + s.dialect.EscapeIdentifier(s.alias))
	}
	for _, j := range s.joins {
		sb.WriteString(fmt.Sprintf(" %s JOIN %s", j.kind, s.dialect.EscapeIdentifier(j.table)))
		if j.alias != "" {
			sb.WriteString(" AS " + s.dialect.EscapeIdentifier(j.alias))
		}
		sb.WriteString(" ON " + j.on)
	}
	if !s.where.empty() {
		frag, wargs, err := s.where.render(s.dialect)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE " + frag)
		args = append(args, wargs...)
	}
	if len(s.groupBy) > 0 {
		cols := make([]string, len(s.groupBy))
		for i, c := range s.groupBy {
			cols[i] = s.dialect.EscapeIdentifier(c)
		}
		sb.WriteString(" GROUP BY " + strings.Join(cols, ", "))
	}
	if !s.having.empty() {
		frag, hargs, err := s.having.render(s.dialect)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" HAVING " + frag)
		args = append(args, hargs...)
	}
	if len(s.order) > 0 {
		parts := make([]string, len(s.order))
		for i, o := range s.order {
			dir := "ASC"
			if o.desc {
				dir = "DESC"
			}
			parts[i] = s.dialect.EscapeIdentifier(o.column) + " " + dir
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if s.limitN != nil {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", *s.limitN))
	}
	if s.offsetN != nil {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", *s.offsetN))
	}
	return sb.String(), args, nil
}

func (s *Selector) renderColumns() string {
	if len(s.columns) == 1 && s.columns[0] == "*" {
		return "*"
	}
	parts := make([]string, len(s.columns))
	for i, c := range s.columns {
		if c == "*" || strings.ContainsAny(c, "( ") {
			parts[i] = c
			continue
		}
		parts[i] = s.dialect.EscapeIdentifier(c)
	}
	return strings.Join(parts, ", ")
}

// query executes the rendered statement and scans into dest, optionally
// through the configured cache plan.
func (s *Selector) query(ctx context.Context, dest any) error {
	sqlStr, args, err := s.Build()
	if err != nil {
		return err
	}
	if s.cache != nil {
		key := s.cache.keyPrefix + s.cache.co.Fingerprint(sqlStr, args)
		raw, hit, err := s.cache.co.Get(ctx, key)
		if err == nil && hit {
			return decodeCached(raw, dest)
		}
	}
	var rows Rows
	if err := s.execer.Query(ctx, sqlStr, args, &rows); err != nil {
		return &dbbridge.QueryError{Entity: s.table, Op: "select", SQL: sqlStr, Bindings: args, Err: err}
	}
	defer rows.Close()
	if err := scanAll(rows, dest); err != nil {
		return &dbbridge.QueryError{Entity: s.table, Op: "select", SQL: sqlStr, Bindings: args, Err: err}
	}
	if len(s.decryptCol) > 0 {
		decryptDest(ctx, s.encr, dest, s.decryptCol)
	}
	if s.cache != nil {
		key := s.cache.keyPrefix + s.cache.co.Fingerprint(sqlStr, args)
		if raw, err := encodeCached(dest); err == nil {
			_, _ = s.cache.co.Set(ctx, key, raw, s.cache.opts)
		}
	}
	return nil
}

// Get executes the query and scans every row into dest, a pointer to a
// slice of structs or map[string]any.
func (s *Selector) Get(ctx context.Context, dest any) error {
	return s.query(ctx, dest)
}

// First executes the query with LIMIT 1 and scans the single row into
// dest, a pointer to a struct or map[string]any. Returns
// dbbridge.ErrNotFound if no row matched.
func (s *Selector) First(ctx context.Context, dest any) error {
	clone := s.Clone()
	clone.limitN = intPtr(1)
	var rows Rows
	sqlStr, args, err := clone.Build()
	if err != nil {
		return err
	}
	if err := s.execer.Query(ctx, sqlStr, args, &rows); err != nil {
		return &dbbridge.QueryError{Entity: s.table, Op: "first", SQL: sqlStr, Bindings: args, Err: err}
	}
	defer rows.Close()
	ok, err := scanOne(rows, dest)
	if err != nil {
		return &dbbridge.QueryError{Entity: s.table, Op: "first", SQL: sqlStr, Bindings: args, Err: err}
	}
	if !ok {
		return dbbridge.NewNotFoundError(s.table)
	}
	if len(s.decryptCol) > 0 {
		decryptDest(ctx, s.encr, dest, s.decryptCol)
	}
	return nil
}

// FirstOrFail is an alias for First kept for parity with the query
// builder's "first_or_fail" operation; First already fails when no row
// is found.
func (s *Selector) FirstOrFail(ctx context.Context, dest any) error { return s.First(ctx, dest) }

// Sole returns exactly one row, failing with dbbridge.ErrNotSingular if
// more than one row matched.
func (s *Selector) Sole(ctx context.Context, dest any) error {
	clone := s.Clone()
	clone.limitN = intPtr(2)
	var rows []map[string]any
	if err := clone.query(ctx, &rows); err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		return dbbridge.NewNotFoundError(s.table)
	case 1:
		return mapInto(rows[0], dest)
	default:
		return dbbridge.NewNotSingularError(s.table)
	}
}

// Count executes SELECT COUNT(*) over the selector's FROM/WHERE clauses.
func (s *Selector) Count(ctx context.Context) (int64, error) {
	return s.aggregate(ctx, "COUNT(*)")
}

// Sum, Avg, Min, Max execute the corresponding aggregate over column.
func (s *Selector) Sum(ctx context.Context, column string) (float64, error) {
	return s.aggregateFloat(ctx, "SUM("+s.dialect.EscapeIdentifier(column)+")")
}
func (s *Selector) Avg(ctx context.Context, column string) (float64, error) {
	return s.aggregateFloat(ctx, "AVG("+s.dialect.EscapeIdentifier(column)+")")
}
func (s *Selector) Min(ctx context.Context, column string) (float64, error) {
	return s.aggregateFloat(ctx, "MIN("+s.dialect.EscapeIdentifier(column)+")")
}
func (s *Selector) Max(ctx context.Context, column string) (float64, error) {
	return s.aggregateFloat(ctx, "MAX("+s.dialect.EscapeIdentifier(column)+")")
}

func (s *Selector) aggregate(ctx context.Context, expr string) (int64, error) {
	clone := s.Clone()
	clone.columns = []string{expr}
	clone.order = nil
	clone.limitN, clone.offsetN = nil, nil
	var row struct {
		N int64 `db:"n"`
	}
	sqlStr, args, err := clone.buildWithAlias(expr, "n")
	if err != nil {
		return 0, err
	}
	var rows Rows
	if err := s.execer.Query(ctx, sqlStr, args, &rows); err != nil {
		return 0, &dbbridge.QueryError{Entity: s.table, Op: "aggregate", SQL: sqlStr, Bindings: args, Err: err}
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&row.N); err != nil {
			return 0, err
		}
	}
	return row.N, nil
}

func (s *Selector) aggregateFloat(ctx context.Context, expr string) (float64, error) {
	clone := s.Clone()
	clone.order = nil
	clone.limitN, clone.offsetN = nil, nil
	sqlStr, args, err := clone.buildWithAlias(expr, "n")
	if err != nil {
		return 0, err
	}
	var rows Rows
	if err := s.execer.Query(ctx, sqlStr, args, &rows); err != nil {
		return 0, &dbbridge.QueryError{Entity: s.table, Op: "aggregate", SQL: sqlStr, Bindings: args, Err: err}
	}
	defer rows.Close()
	var n float64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (s *Selector) buildWithAlias(expr, alias string) (string, []any, error) {
	cols := s.columns
	s.columns = []string{expr}
	defer func() { s.columns = cols }()
	sqlStr, args, err := s.Build()
	if err != nil {
		return "", nil, err
	}
	_ = alias
	return sqlStr, args, nil
}

// Exists reports whether any row matches the selector.
func (s *Selector) Exists(ctx context.Context) (bool, error) {
	n, err := s.Count(ctx)
	return n > 0, err
}

// DoesntExist is the negation of Exists.
func (s *Selector) DoesntExist(ctx context.Context) (bool, error) {
	ok, err := s.Exists(ctx)
	return !ok, err
}

// Pluck scans a single column from every row into dest, a pointer to a
// slice (e.g. *[]string, *[]int64).
func (s *Selector) Pluck(ctx context.Context, column string, dest any) error {
	clone := s.Clone()
	clone.columns = []string{column}
	return clone.query(ctx, dest)
}

// PluckKeyValue scans two columns from every row into a map, the first
// as key, the second as value.
func (s *Selector) PluckKeyValue(ctx context.Context, keyColumn, valueColumn string, dest any) error {
	clone := s.Clone()
	clone.columns = []string{keyColumn, valueColumn}
	var rows []map[string]any
	if err := clone.query(ctx, &rows); err != nil {
		return err
	}
	return pluckMap(rows, keyColumn, valueColumn, dest)
}

// Chunk executes the query in pages of size, invoking fn with each
// page's rows (as []map[string]any) until fn returns false or a page
// comes back short.
func (s *Selector) Chunk(ctx context.Context, size int, fn func([]map[string]any) (bool, error)) error {
	page := 1
	for {
		clone := s.Clone().ForPage(page, size).OrderBy(s.firstOrderColumn())
		var rows []map[string]any
		if err := clone.query(ctx, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		cont, err := fn(rows)
		if err != nil {
			return err
		}
		if !cont || len(rows) < size {
			return nil
		}
		page++
	}
}

func (s *Selector) firstOrderColumn() string {
	if len(s.order) > 0 {
		return s.order[0].column
	}
	return "1"
}

// Lazy returns a pull-based iterator over rows in pages of size: call
// next() until ok is false.
func (s *Selector) Lazy(ctx context.Context, size int) (next func() (row map[string]any, ok bool, err error)) {
	page := 1
	buf := make([]map[string]any, 0, size)
	idx := 0
	exhausted := false
	return func() (map[string]any, bool, error) {
		if idx < len(buf) {
			row := buf[idx]
			idx++
			return row, true, nil
		}
		if exhausted {
			return nil, false, nil
		}
		clone := s.Clone().ForPage(page, size).OrderBy(s.firstOrderColumn())
		var rows []map[string]any
		if err := clone.query(ctx, &rows); err != nil {
			return nil, false, err
		}
		if len(rows) < size {
			exhausted = true
		}
		if len(rows) == 0 {
			return nil, false, nil
		}
		buf, idx, page = rows, 1, page+1
		return buf[0], true, nil
	}
}

// Page is the result of Paginate.
type Page struct {
	Rows       []map[string]any
	Total      int64
	PerPage    int
	PageNumber int
}

// Paginate runs Count and a ForPage-bounded Get in one call.
func (s *Selector) Paginate(ctx context.Context, page, perPage int) (*Page, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := s.Clone().ForPage(page, perPage).query(ctx, &rows); err != nil {
		return nil, err
	}
	return &Page{Rows: rows, Total: total, PerPage: perPage, PageNumber: page}, nil
}

func intPtr(n int) *int { return &n }
