package dbaccess

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Row is an immutable, ordered mapping from column name to value.
//
// Values are normalised when scanned: []byte becomes string, every integer
// kind becomes int64 and every float kind becomes float64. bool, time.Time
// and nil are kept as they are. MySQL returns DECIMAL columns as text, so
// numeric accessors also parse strings.
type Row struct {
	cols []string
	vals []any
}

// NewRow builds a Row from parallel column and value slices.
// Both slices are copied; extra values or columns beyond the shorter slice are ignored.
func NewRow(cols []string, vals []any) Row {
	n := min(len(cols), len(vals))
	r := Row{
		cols: make([]string, n),
		vals: make([]any, n),
	}
	copy(r.cols, cols[:n])
	for i := range n {
		r.vals[i] = normalise(vals[i])
	}
	return r
}

// Columns returns the column names in result order.
func (r Row) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.cols)
}

// Value returns the value of column and whether the column exists.
func (r Row) Value(column string) (any, bool) {
	for i, c := range r.cols {
		if c == column {
			return r.vals[i], true
		}
	}
	return nil, false
}

// String returns the column formatted as text. Missing columns and NULL yield "".
func (r Row) String(column string) string {
	v, ok := r.Value(column)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int64 returns the column as an integer.
// Floats are accepted only when they hold a whole number.
func (r Row) Int64(column string) (int64, error) {
	v, ok := r.Value(column)
	if !ok {
		return 0, invalid("no column %q", column)
	}

	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, invalid("column %q holds fractional value %v", column, n)
		}
		return int64(n), nil
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, invalid("column %q holds non-integer text %q", column, n)
		}
		return int64(f), nil
	default:
		return 0, invalid("column %q holds %T, not a number", column, v)
	}
}

// Float64 returns the column as a float.
func (r Row) Float64(column string) (float64, error) {
	v, ok := r.Value(column)
	if !ok {
		return 0, invalid("no column %q", column)
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, invalid("column %q holds non-numeric text %q", column, n)
		}
		return f, nil
	default:
		return 0, invalid("column %q holds %T, not a number", column, v)
	}
}

// Map returns a copy of the row as a map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.cols))
	for i, c := range r.cols {
		m[c] = r.vals[i]
	}
	return m
}

// MarshalJSON encodes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.vals[i])
		if err != nil {
			return nil, fmt.Errorf("encoding column %q: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// normalise maps driver values onto the small set Row exposes.
func normalise(v any) any {
	switch n := v.(type) {
	case []byte:
		return string(n)
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return strconv.FormatUint(n, 10)
		}
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// scanRow reads the current row of rows into a Row.
func scanRow(rows *sql.Rows, cols []string) (Row, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Row{}, fmt.Errorf("scanning row: %w", err)
	}
	return NewRow(cols, vals), nil
}

// collectRows drains rows into a slice and closes it.
func collectRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}
