package sql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// jsonLiteral renders v as a quoted JSON string literal, used by both
// dialects for []any and map[string]any values (MySQL JSON type,
// PostgreSQL jsonb).
func jsonLiteral(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("dialect/sql: marshal json literal: %w", err)
	}
	return "'" + strings.ReplaceAll(string(b), "'", "''") + "'", nil
}

// pgArrayLiteral renders a []any as a PostgreSQL ARRAY[...] constructor.
// Nested slices and maps are not supported; every element must itself
// escape as a scalar.
func pgArrayLiteral(vs []any) (string, error) {
	d := postgresDialect{}
	parts := make([]string, len(vs))
	for i, v := range vs {
		lit, err := d.EscapeValue(v)
		if err != nil {
			return "", err
		}
		parts[i] = lit
	}
	return "ARRAY[" + strings.Join(parts, ", ") + "]", nil
}
