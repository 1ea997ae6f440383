package sql

// This file defines the package-level predicate constructors and their
// Field* wrapper functions, the building blocks Selector.Where and the
// generic FieldEQ/FieldIn/… filter closures are built from.

// EQ, NEQ, GT, GTE, LT, LTE build a Simple condition comparing column to
// v using the given operator. A nil v paired with EQ/NEQ renders IS
// NULL/IS NOT NULL instead of a bound placeholder.
func EQ(column string, v any) *predicate  { return cmp(column, "=", v) }
func NEQ(column string, v any) *predicate { return cmp(column, "<>", v) }
func GT(column string, v any) *predicate  { return cmp(column, ">", v) }
func GTE(column string, v any) *predicate { return cmp(column, ">=", v) }
func LT(column string, v any) *predicate  { return cmp(column, "<", v) }
func LTE(column string, v any) *predicate { return cmp(column, "<=", v) }

func cmp(column, op string, v any) *predicate {
	return &predicate{kind: condSimple, column: column, op: op, value: v}
}

// Contains, HasPrefix, HasSuffix build case-sensitive LIKE conditions.
// ContainsFold and EqualFold build case-insensitive comparisons: the
// value is case-folded here with foldPattern, and the column is wrapped
// in LOWER() (at render time for ContainsFold, via foldColumn for
// EqualFold), the same way for both dialects.
func Contains(column string, v string) *predicate {
	return &predicate{kind: condLike, column: column, pattern: "%" + v + "%"}
}

func HasPrefix(column string, v string) *predicate {
	return &predicate{kind: condLike, column: column, pattern: v + "%"}
}

func HasSuffix(column string, v string) *predicate {
	return &predicate{kind: condLike, column: column, pattern: "%" + v}
}

func ContainsFold(column string, v string) *predicate {
	p := Contains(column, foldPattern(v))
	p.op = "foldcontains"
	return p
}

func EqualFold(column string, v string) *predicate {
	p := cmp(foldColumn(column), "=", foldPattern(v))
	p.rawCol = true
	return p
}

// IsNull and NotNull build Null conditions.
func IsNull(column string) *predicate  { return &predicate{kind: condNull, column: column} }
func NotNull(column string) *predicate { return &predicate{kind: condNull, column: column, negate: true} }

// In and NotIn build In conditions from a heterogeneous value slice.
func In(column string, vs ...any) *predicate {
	return &predicate{kind: condIn, column: column, values: vs}
}

func NotIn(column string, vs ...any) *predicate {
	return &predicate{kind: condIn, column: column, values: vs, negate: true}
}

// Between and NotBetween build Between conditions.
func Between(column string, lo, hi any) *predicate {
	return &predicate{kind: condBetween, column: column, lo: lo, hi: hi}
}

func NotBetween(column string, lo, hi any) *predicate {
	return &predicate{kind: condBetween, column: column, lo: lo, hi: hi, negate: true}
}

// Field* wrappers return a func(*Selector) per comparison kind, letting
// callers build reusable, type-generic filters (e.g. a Filter[T] stored
// on a handler struct) without depending on a particular Selector
// instance: the column name is qualified via s.C(name) at apply time,
// not at construction time, so the same filter works whether the query
// aliases its table or not.
func FieldEQ[T any](name string, v T) func(*Selector)  { return func(s *Selector) { s.Where(EQ(s.C(name), v)) } }
func FieldNEQ[T any](name string, v T) func(*Selector) { return func(s *Selector) { s.Where(NEQ(s.C(name), v)) } }
func FieldGT[T any](name string, v T) func(*Selector)  { return func(s *Selector) { s.Where(GT(s.C(name), v)) } }
func FieldGTE[T any](name string, v T) func(*Selector) { return func(s *Selector) { s.Where(GTE(s.C(name), v)) } }
func FieldLT[T any](name string, v T) func(*Selector)  { return func(s *Selector) { s.Where(LT(s.C(name), v)) } }
func FieldLTE[T any](name string, v T) func(*Selector) { return func(s *Selector) { s.Where(LTE(s.C(name), v)) } }

func FieldIn[T any](name string, vs ...T) func(*Selector) {
	return func(s *Selector) {
		v := make([]any, len(vs))
		for i := range vs {
			v[i] = vs[i]
		}
		s.Where(In(s.C(name), v...))
	}
}

func FieldNotIn[T any](name string, vs ...T) func(*Selector) {
	return func(s *Selector) {
		v := make([]any, len(vs))
		for i := range vs {
			v[i] = vs[i]
		}
		s.Where(NotIn(s.C(name), v...))
	}
}

func FieldContains(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(Contains(s.C(name), v)) }
}

func FieldContainsFold(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(ContainsFold(s.C(name), v)) }
}

func FieldHasPrefix(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(HasPrefix(s.C(name), v)) }
}

func FieldHasSuffix(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(HasSuffix(s.C(name), v)) }
}

func FieldEqualFold(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(EqualFold(s.C(name), v)) }
}

func FieldIsNull(name string) func(*Selector) {
	return func(s *Selector) { s.Where(IsNull(s.C(name))) }
}

func FieldNotNull(name string) func(*Selector) {
	return func(s *Selector) { s.Where(NotNull(s.C(name))) }
}

// foldColumn and foldPattern implement case-insensitive matching using
// golang.org/x/text/cases so behavior is consistent across dialects
// rather than relying on each database's default collation.
func foldColumn(column string) string { return "LOWER(" + column + ")" }
