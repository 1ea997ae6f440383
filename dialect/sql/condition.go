package sql

import (
	"fmt"
	"strings"
)

// KV is an ordered key/value pair used by WhereMap so Object conditions
// render columns in the order the caller gave them, not an arbitrary
// map iteration order.
type KV struct {
	Key   string
	Value any
}

// condKind discriminates the Where-condition variants: Simple, Object,
// Raw, Null, In, Between, Like.
type condKind int

const (
	condSimple condKind = iota
	condObject
	condRaw
	condNull
	condIn
	condBetween
	condLike
)

// Conjunction joins a condition to the ones before it.
type Conjunction int

const (
	And Conjunction = iota
	Or
)

// predicate is one node of the Where Assembler's condition tree. It is
// never constructed directly by callers; use Where/OrWhere and the
// package-level constructors below (EQ, In, Like, …).
type predicate struct {
	kind    condKind
	conj    Conjunction
	column  string
	op      string
	value   any
	values  []any
	lo, hi  any
	negate  bool
	pattern string
	object  []KV
	rawSQL  string
	rawArgs []any
	rawCol  bool // column already holds a SQL expression, not a plain identifier
}

// whereAssembler accumulates predicate nodes in declaration order and
// renders them against a Dialect. It is embedded in Selector (for WHERE
// and HAVING), UpdateBuilder and DeleteBuilder; InsertBuilder has none.
type whereAssembler struct {
	preds []predicate
}

func (w *whereAssembler) add(p predicate) {
	if len(w.preds) == 0 {
		p.conj = And
	}
	w.preds = append(w.preds, p)
}

func (w *whereAssembler) empty() bool { return len(w.preds) == 0 }

// render produces the SQL fragment (without the leading "WHERE") and
// the ordered bind arguments. Identifier quoting is dialect-specific;
// bound values are never inlined except inside Raw fragments, which are
// the caller's responsibility.
func (w *whereAssembler) render(d Dialect) (string, []any, error) {
	return renderPredicates(d, w.preds)
}

func renderPredicates(d Dialect, preds []predicate) (string, []any, error) {
	var sb strings.Builder
	var args []any
	for i, p := range preds {
		if i > 0 {
			if p.conj == Or {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}
		frag, fargs, err := renderOne(d, p)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(frag)
		args = append(args, fargs...)
	}
	return sb.String(), args, nil
}

func renderOne(d Dialect, p predicate) (string, []any, error) {
	switch p.kind {
	case condSimple:
		col := p.column
		if !p.rawCol {
			col = d.EscapeIdentifier(col)
		}
		if p.value == nil {
			switch p.op {
			case "=":
				return col + " IS NULL", nil, nil
			case "<>", "!=":
				return col + " IS NOT NULL", nil, nil
			}
		}
		return fmt.Sprintf("%s %s %s", col, p.op, d.NextPlaceholder()), []any{p.value}, nil

	case condObject:
		var parts []string
		var args []any
		for _, kv := range p.object {
			col := d.EscapeIdentifier(kv.Key)
			if kv.Value == nil {
				parts = append(parts, col+" IS NULL")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s = %s", col, d.NextPlaceholder()))
			args = append(args, kv.Value)
		}
		frag := strings.Join(parts, " AND ")
		if len(parts) > 1 {
			frag = "(" + frag + ")"
		}
		return frag, args, nil

	case condRaw:
		frag := p.rawSQL
		for range p.rawArgs {
			// Raw fragments carry their own placeholder markers verbatim;
			// for dialects with positional placeholders ($1, $2, …) the
			// caller must already have written them correctly. WhereRaw
			// bypasses escaping entirely.
			_ = d.NextPlaceholder()
		}
		return frag, p.rawArgs, nil

	case condNull:
		col := d.EscapeIdentifier(p.column)
		if p.negate {
			return col + " IS NOT NULL", nil, nil
		}
		return col + " IS NULL", nil, nil

	case condIn:
		col := d.EscapeIdentifier(p.column)
		if len(p.values) == 0 {
			// An empty IN-list can never match; NOT IN on an empty list
			// always matches. Render as a tautology/contradiction rather
			// than emitting invalid SQL ("IN ()").
			if p.negate {
				return "1=1", nil, nil
			}
			return "1=0", nil, nil
		}
		marks := make([]string, len(p.values))
		for i := range p.values {
			marks[i] = d.NextPlaceholder()
		}
		op := "IN"
		if p.negate {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(marks, ", ")), p.values, nil

	case condBetween:
		col := d.EscapeIdentifier(p.column)
		op := "BETWEEN"
		if p.negate {
			op = "NOT BETWEEN"
		}
		lo, hi := d.NextPlaceholder(), d.NextPlaceholder()
		return fmt.Sprintf("%s %s %s AND %s", col, op, lo, hi), []any{p.lo, p.hi}, nil

	case condLike:
		col := d.EscapeIdentifier(p.column)
		if p.op == "foldcontains" {
			col = "LOWER(" + col + ")"
		}
		op := "LIKE"
		if p.negate {
			op = "NOT LIKE"
		}
		return fmt.Sprintf("%s %s %s", col, op, d.NextPlaceholder()), []any{p.pattern}, nil

	default:
		return "", nil, fmt.Errorf("dialect/sql: unknown condition kind %d", p.kind)
	}
}
