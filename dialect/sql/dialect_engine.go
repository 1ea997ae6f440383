package sql

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/berkeerdo/dbbridge/dialect"
)

// Dialect is the closed capability set every rendering dialect must
// implement. EscapeIdentifier/EscapeValue/
// NextPlaceholder/ResetPlaceholders are the primitives; the Build
// methods of Selector (builder.go) and InsertBuilder/UpdateBuilder/
// DeleteBuilder (builder_mutate.go) are assembled on top of them, so
// MySQL and PostgreSQL share every render-order decision and differ only
// in the primitives below.
type Dialect interface {
	// Name reports one of the dialect.MySQL / dialect.Postgres
	// constants.
	Name() string

	// EscapeIdentifier wraps name in the dialect's identifier quote. A
	// "schema.table" form is split on '.' and each segment quoted
	// independently. Embedded quote characters are doubled.
	EscapeIdentifier(name string) string

	// EscapeValue renders v as a SQL literal, with per-primitive-kind
	// rules (numbers, strings, bools, nil, …), for inline use. The
	// builders never call it: LIMIT/OFFSET are written as integers
	// directly and every value is bound through a placeholder.
	EscapeValue(v any) (string, error)

	// NextPlaceholder returns the next parameter placeholder marker and
	// advances the per-render counter.
	NextPlaceholder() string

	// ResetPlaceholders resets the per-render counter to zero. Must be
	// called at the start of every render.
	ResetPlaceholders()
}

// mysqlDialect implements Dialect for MySQL/MariaDB.
type mysqlDialect struct{}

// postgresDialect implements Dialect for PostgreSQL. counter is mutated
// during render and is therefore NOT safe for concurrent renders on the
// same instance — callers
// must either give each render its own Dialect instance or serialize
// renders externally.
type postgresDialect struct {
	counter int
}

// New returns the Dialect implementation for name, one of dialect.MySQL
// or dialect.Postgres. Any other name is an error: the set of rendering
// dialects is closed.
func New(name string) (Dialect, error) {
	switch name {
	case dialect.MySQL, "mariadb":
		return &mysqlDialect{}, nil
	case dialect.Postgres, "postgresql":
		return &postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("dialect/sql: unsupported dialect %q", name)
	}
}

func (mysqlDialect) Name() string { return dialect.MySQL }

func (mysqlDialect) NextPlaceholder() string { return "?" }

func (mysqlDialect) ResetPlaceholders() {}

func (mysqlDialect) EscapeIdentifier(name string) string {
	return escapeIdentifierWith(name, '`')
}

func (mysqlDialect) EscapeValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case string:
		return "'" + escapeMySQLString(x) + "'", nil
	case []byte:
		return "X'" + hex.EncodeToString(x) + "'", nil
	case time.Time:
		return "'" + x.UTC().Format("2006-01-02 15:04:05.999999") + "'", nil
	case []any:
		return jsonLiteral(x)
	case map[string]any:
		return jsonLiteral(x)
	default:
		return numericOrError(v)
	}
}

func (p *postgresDialect) Name() string { return dialect.Postgres }

func (p *postgresDialect) NextPlaceholder() string {
	p.counter++
	return "$" + strconv.Itoa(p.counter)
}

func (p *postgresDialect) ResetPlaceholders() { p.counter = 0 }

func (postgresDialect) EscapeIdentifier(name string) string {
	return escapeIdentifierWith(name, '"')
}

func (postgresDialect) EscapeValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case []byte:
		return "'\\x" + hex.EncodeToString(x) + "'::bytea", nil
	case time.Time:
		return "'" + x.UTC().Format("2006-01-02T15:04:05.999999Z07:00") + "'::timestamptz", nil
	case []any:
		return pgArrayLiteral(x)
	case map[string]any:
		j, err := jsonLiteral(x)
		if err != nil {
			return "", err
		}
		return j + "::jsonb", nil
	default:
		return numericOrError(v)
	}
}

// escapeIdentifierWith splits a "schema.table" identifier on '.' and
// quotes every segment independently, doubling embedded quote runes
//.
func escapeIdentifierWith(name string, quote byte) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		var b strings.Builder
		b.WriteByte(quote)
		for _, r := range p {
			b.WriteRune(r)
			if r == rune(quote) {
				b.WriteByte(quote)
			}
		}
		b.WriteByte(quote)
		parts[i] = b.String()
	}
	return strings.Join(parts, ".")
}

// escapeMySQLString escapes both single quotes and backslashes, the
// two characters MySQL string literals treat specially.
func escapeMySQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return s
}

func numericOrError(v any) (string, error) {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("dialect/sql: cannot escape value of type %T", v)
	}
}
