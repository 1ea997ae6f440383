package sql

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/berkeerdo/dbbridge/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

// scanAll scans every remaining row in rows into dest, a pointer to a
// slice of structs or a pointer to a slice of map[string]any.
func scanAll(rows Rows, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dialect/sql: scan destination must be a pointer to a slice, got %T", dest)
	}
	slice := rv.Elem()
	elemType := slice.Type().Elem()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		elem, err := scanRow(rows, cols, elemType)
		if err != nil {
			return err
		}
		slice.Set(reflect.Append(slice, elem))
	}
	return rows.Err()
}

// scanOne scans at most one row into dest, a pointer to a struct or
// map[string]any. ok reports whether a row was present.
func scanOne(rows Rows, dest any) (bool, error) {
	cols, err := rows.Columns()
	if err != nil {
		return false, err
	}
	if !rows.Next() {
		return false, rows.Err()
	}
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr {
		return false, fmt.Errorf("dialect/sql: scan destination must be a pointer, got %T", dest)
	}
	elem, err := scanRow(rows, cols, rv.Elem().Type())
	if err != nil {
		return false, err
	}
	rv.Elem().Set(elem)
	return true, nil
}

// scanRow scans the current row into a freshly allocated value of
// elemType (a struct type, map[string]any, or, for a single-column
// result, any type the driver can scan into directly).
func scanRow(rows Rows, cols []string, elemType reflect.Type) (reflect.Value, error) {
	if elemType == reflect.TypeOf(map[string]any{}) {
		m, err := scanRowToMap(rows, cols)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(m), nil
	}
	if elemType.Kind() != reflect.Struct && len(cols) == 1 {
		elemPtr := reflect.New(elemType)
		if err := rows.Scan(elemPtr.Interface()); err != nil {
			return reflect.Value{}, err
		}
		return elemPtr.Elem(), nil
	}

	elemPtr := reflect.New(elemType)
	dests := make([]any, len(cols))
	fields := structFieldIndex(elemType)
	for i, col := range cols {
		if idx, ok := fields[strings.ToLower(col)]; ok {
			dests[i] = elemPtr.Elem().Field(idx).Addr().Interface()
		} else {
			var discard any
			dests[i] = &discard
		}
	}
	if err := rows.Scan(dests...); err != nil {
		return reflect.Value{}, err
	}
	return elemPtr.Elem(), nil
}

func scanRowToMap(rows Rows, cols []string) (map[string]any, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	m := make(map[string]any, len(cols))
	for i, col := range cols {
		if b, ok := vals[i].([]byte); ok {
			m[col] = string(b)
			continue
		}
		m[col] = vals[i]
	}
	return m, nil
}

// structFieldIndex maps lower-cased column names (from a `db` struct tag
// or the field name itself) to their field index, one level deep.
func structFieldIndex(t reflect.Type) map[string]int {
	idx := make(map[string]int)
	if t.Kind() != reflect.Struct {
		return idx
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("db"); ok && tag != "" && tag != "-" {
			name = strings.Split(tag, ",")[0]
		}
		idx[strings.ToLower(name)] = i
	}
	return idx
}

// mapInto copies the scalar fields of m into dest, a pointer to a struct
// or map[string]any, reusing scanRow's field-matching rules.
func mapInto(m map[string]any, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr {
		return fmt.Errorf("dialect/sql: destination must be a pointer, got %T", dest)
	}
	if mm, ok := dest.(*map[string]any); ok {
		*mm = m
		return nil
	}
	elem := rv.Elem()
	fields := structFieldIndex(elem.Type())
	for col, v := range m {
		idx, ok := fields[strings.ToLower(col)]
		if !ok || v == nil {
			continue
		}
		fv := elem.Field(idx)
		val := reflect.ValueOf(v)
		if val.Type().ConvertibleTo(fv.Type()) {
			fv.Set(val.Convert(fv.Type()))
		}
	}
	return nil
}

// pluckMap turns rows (each holding keyColumn and valueColumn) into a
// map assigned to dest, a pointer to a map type.
func pluckMap(rows []map[string]any, keyColumn, valueColumn string, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Map {
		return fmt.Errorf("dialect/sql: pluck destination must be a pointer to a map, got %T", dest)
	}
	mapType := rv.Elem().Type()
	out := reflect.MakeMapWithSize(mapType, len(rows))
	for _, row := range rows {
		k := reflect.ValueOf(row[keyColumn])
		v := reflect.ValueOf(row[valueColumn])
		if !k.IsValid() || !v.IsValid() {
			continue
		}
		if k.Type().ConvertibleTo(mapType.Key()) && v.Type().ConvertibleTo(mapType.Elem()) {
			out.SetMapIndex(k.Convert(mapType.Key()), v.Convert(mapType.Elem()))
		}
	}
	rv.Elem().Set(out)
	return nil
}

// decryptDest best-effort decrypts named columns on a scan destination,
// suppressing per-field failures so a row with an unencrypted or
// corrupt value is returned unchanged rather than failing the query.
// dest may be a pointer to a slice of map[string]any, a pointer to a
// single map[string]any, a pointer to a slice of structs, or a pointer
// to a single struct.
func decryptDest(ctx context.Context, encr crypto.FieldEncryptor, dest any, columns []string) {
	if len(columns) == 0 {
		return
	}
	switch d := dest.(type) {
	case *[]map[string]any:
		if d == nil {
			return
		}
		for _, row := range *d {
			decryptMap(ctx, encr, row, columns)
		}
		return
	case *map[string]any:
		if d == nil || *d == nil {
			return
		}
		decryptMap(ctx, encr, *d, columns)
		return
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return
	}
	elem := rv.Elem()
	switch elem.Kind() {
	case reflect.Slice:
		for i := 0; i < elem.Len(); i++ {
			decryptStruct(ctx, encr, elem.Index(i), columns)
		}
	case reflect.Struct:
		decryptStruct(ctx, encr, elem, columns)
	}
}

func decryptMap(ctx context.Context, encr crypto.FieldEncryptor, row map[string]any, columns []string) {
	for _, col := range columns {
		s, ok := row[col].(string)
		if !ok {
			continue
		}
		if plain, err := encr.DecryptField(ctx, col, s); err == nil {
			row[col] = plain
		}
	}
}

func decryptStruct(ctx context.Context, encr crypto.FieldEncryptor, sv reflect.Value, columns []string) {
	fields := structFieldIndex(sv.Type())
	for _, col := range columns {
		idx, ok := fields[strings.ToLower(col)]
		if !ok {
			continue
		}
		fv := sv.Field(idx)
		if fv.Kind() != reflect.String || !fv.CanSet() {
			continue
		}
		if plain, err := encr.DecryptField(ctx, col, fv.String()); err == nil {
			fv.SetString(plain)
		}
	}
}

func decodeCached(raw []byte, dest any) error {
	return msgpack.Unmarshal(raw, dest)
}

func encodeCached(dest any) ([]byte, error) {
	return msgpack.Marshal(dest)
}
