// Package dataset loads tabular data from flat, compressed and archived CSV
// files into an in-memory Dataset.
package dataset

import (
	"strconv"

	tferrors "github.com/YuminosukeSato/tabflow/pkg/errors"
)

// Value is a single cell: numeric or categorical. Boolean cells are numeric
// 1/0 and keep their token for use as a class label.
type Value struct {
	num     float64
	str     string
	numeric bool
	boolean bool
}

// Num returns a numeric Value.
func Num(f float64) Value {
	return Value{num: f, numeric: true}
}

// Bool returns a numeric 1/0 Value labelled token, e.g. "yes" or "false".
func Bool(b bool, token string) Value {
	v := Value{str: token, numeric: true, boolean: true}
	if b {
		v.num = 1
	}
	return v
}

// Cat returns a categorical Value.
func Cat(s string) Value {
	return Value{str: s}
}

// IsNumeric reports whether v holds a number. Booleans are numeric.
func (v Value) IsNumeric() bool { return v.numeric }

// IsBoolean reports whether v was read from a yes/no or true/false token.
func (v Value) IsBoolean() bool { return v.boolean }

// Float returns the numeric value and true, or 0 and false for categorical values.
func (v Value) Float() (float64, bool) {
	if !v.numeric {
		return 0, false
	}
	return v.num, true
}

// String returns the text of a categorical or boolean value, or the
// formatted number.
func (v Value) String() string {
	if v.numeric && !v.boolean {
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
	return v.str
}

// Dataset is an ordered set of named columns and rows of Values.
// Every row has one Value per column.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]Value
	dropped int
	source  string
}

// New builds a Dataset from column names and rows.
func New(columns []string, rows [][]Value) (*Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, tferrors.NewValidationError("columns", "duplicate column name", c)
		}
		index[c] = i
	}
	for _, r := range rows {
		if len(r) != len(columns) {
			return nil, tferrors.NewDimensionError("dataset.New", len(columns), len(r), 1)
		}
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{columns: cols, index: index, rows: rows}, nil
}

// Columns returns the column names in file order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Row returns row i. The slice must not be modified.
func (d *Dataset) Row(i int) []Value { return d.rows[i] }

// Index returns the position of column name, or -1.
func (d *Dataset) Index(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

// Column returns a copy of the values of the named column.
func (d *Dataset) Column(name string) ([]Value, error) {
	j := d.Index(name)
	if j < 0 {
		return nil, tferrors.NewMissingColumnError(name, d.Columns())
	}
	out := make([]Value, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[j]
	}
	return out, nil
}

// IsNumericColumn reports whether every value of column j is numeric.
func (d *Dataset) IsNumericColumn(j int) bool {
	for _, r := range d.rows {
		if !r[j].numeric {
			return false
		}
	}
	return true
}

// IsBooleanColumn reports whether every value of column j is a boolean token.
func (d *Dataset) IsBooleanColumn(j int) bool {
	if len(d.rows) == 0 {
		return false
	}
	for _, r := range d.rows {
		if !r[j].boolean {
			return false
		}
	}
	return true
}

// Dropped returns how many rows were removed during ingestion because they
// contained a missing value.
func (d *Dataset) Dropped() int { return d.dropped }

// Source returns the file the dataset was read from, if any.
func (d *Dataset) Source() string { return d.source }
