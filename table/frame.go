package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/poiesic/plotdex/core"
)

// Type is the logical type of a column.
type Type int

const (
	// String columns hold text.
	String Type = iota + 1
	// Int columns hold 64-bit integers.
	Int
	// Float columns hold 64-bit floats.
	Float
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Column is an immutable, typed column. Null cells are stored as nil;
// non-null cells are string, int64 or float64 according to the column type.
// Numeric columns read from a file keep the cell text they were parsed from.
type Column struct {
	name   string
	typ    Type
	values []any
	raw    []string
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Type returns the column type.
func (c *Column) Type() Type { return c.typ }

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.values) }

// Value returns the typed value at row and whether it is non-null.
func (c *Column) Value(row int) (any, bool) {
	if row < 0 || row >= len(c.values) || c.values[row] == nil {
		return nil, false
	}
	return c.values[row], true
}

// Text returns the value at row rendered as text, and whether it is non-null.
// Cells read from a file render as they were written, so "007" stays "007".
func (c *Column) Text(row int) (string, bool) {
	v, ok := c.Value(row)
	if !ok {
		return "", false
	}
	if c.raw != nil {
		return c.raw[row], true
	}
	return formatValue(v), true
}

// Frame is an immutable, fully materialized table with named, typed columns.
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

func newFrame(columns []*Column, rows int) *Frame {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c.name] = i
	}
	return &Frame{columns: columns, index: index, rows: rows}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in source order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.name
	}
	return names
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Cast returns a new frame with each named column converted to its target type.
// The receiver is left untouched. A missing column or an unconvertible value
// yields a *core.SchemaError.
func (f *Frame) Cast(casts map[string]Type) (*Frame, error) {
	columns := make([]*Column, len(f.columns))
	copy(columns, f.columns)

	for name := range casts {
		if _, ok := f.index[name]; !ok {
			return nil, &core.SchemaError{Column: name, Row: -1, Reason: "column not found"}
		}
	}
	// Frame order keeps the reported error deterministic
	for i, c := range f.columns {
		target, ok := casts[c.name]
		if !ok || target == c.typ {
			continue
		}
		converted, err := castColumn(c, target)
		if err != nil {
			return nil, err
		}
		columns[i] = converted
	}
	return newFrame(columns, f.rows), nil
}

func castColumn(c *Column, target Type) (*Column, error) {
	values := make([]any, len(c.values))
	for row, v := range c.values {
		if v == nil {
			continue
		}
		if target == String && c.raw != nil {
			values[row] = c.raw[row]
			continue
		}
		converted, err := convert(v, target)
		if err != nil {
			return nil, &core.SchemaError{
				Column: c.name,
				Row:    row,
				Value:  formatValue(v),
				Reason: err.Error(),
			}
		}
		values[row] = converted
	}
	return &Column{name: c.name, typ: target, values: values}, nil
}

func convert(v any, target Type) (any, error) {
	switch target {
	case String:
		return formatValue(v), nil
	case Int:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			if x != math.Trunc(x) || x < math.MinInt64 || x > math.MaxInt64 {
				return nil, fmt.Errorf("cannot convert %v to int without loss", x)
			}
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("not an integer")
			}
			return n, nil
		}
	case Float:
		switch x := v.(type) {
		case int64:
			return float64(x), nil
		case float64:
			return x, nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("not a number")
			}
			return n, nil
		}
	}
	return nil, fmt.Errorf("unsupported conversion to %s", target)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
