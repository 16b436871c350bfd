package telemetry

import "strings"

// Row is one record returned by a query. Columns is shared by every row of
// the same result and must not be modified.
type Row struct {
	Columns []string
	Values  []Value
}

// NewRow pairs column names with raw values
func NewRow(columns []string, values ...any) Row {
	vals := make([]Value, len(values))
	for i, v := range values {
		vals[i] = FromAny(v)
	}
	return Row{Columns: columns, Values: vals}
}

// Index returns the position of the named column, matching case-insensitively,
// or -1 when absent
func (r Row) Index(name string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Get returns the value of the named column
func (r Row) Get(name string) (Value, bool) {
	i := r.Index(name)
	if i < 0 {
		return Null(), false
	}
	return r.At(i), true
}

// At returns the value at position i, null when out of range
func (r Row) At(i int) Value {
	if i < 0 || i >= len(r.Values) {
		return Null()
	}
	return r.Values[i]
}
