package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/poiesic/plotdex/core"
)

// ctxCheckInterval is how many rows are read between context checks.
const ctxCheckInterval = 1024

// ReadCSV reads a delimited file with a mandatory header row into a Frame.
// Column types are inferred from the non-empty cells of each column.
func ReadCSV(r io.Reader) (*Frame, error) {
	return readCSV(context.Background(), r)
}

func readCSV(ctx context.Context, r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &core.SchemaError{Row: -1, Reason: "missing header row"}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &core.SchemaError{Column: fmt.Sprintf("#%d", i), Row: -1, Reason: "empty column name"}
		}
		if seen[name] {
			return nil, &core.SchemaError{Column: name, Row: -1, Reason: "duplicate column name"}
		}
		seen[name] = true
		header[i] = name
	}

	raw := make([][]string, len(header))
	rows := 0
	for {
		if rows%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rows, err)
		}
		if len(record) > len(header) {
			return nil, &core.SchemaError{
				Column: header[len(header)-1],
				Row:    rows,
				Reason: fmt.Sprintf("row has %d fields, header has %d", len(record), len(header)),
			}
		}
		for i := range header {
			cell := ""
			if i < len(record) {
				cell = record[i]
			}
			raw[i] = append(raw[i], cell)
		}
		rows++
	}

	columns := make([]*Column, len(header))
	for i, name := range header {
		columns[i] = inferColumn(name, raw[i])
	}
	return newFrame(columns, rows), nil
}

// inferColumn picks the narrowest type that parses every non-empty cell.
func inferColumn(name string, cells []string) *Column {
	isInt, isFloat, nonEmpty := true, true, false
	for _, cell := range cells {
		s := strings.TrimSpace(cell)
		if s == "" {
			continue
		}
		nonEmpty = true
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if !isInt && isFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if !isInt && !isFloat {
			break
		}
	}

	typ := String
	switch {
	case !nonEmpty:
		typ = String
	case isInt:
		typ = Int
	case isFloat:
		typ = Float
	}

	values := make([]any, len(cells))
	var raw []string
	if typ != String {
		raw = cells
	}
	for row, cell := range cells {
		s := strings.TrimSpace(cell)
		if s == "" {
			continue
		}
		switch typ {
		case Int:
			values[row], _ = strconv.ParseInt(s, 10, 64)
		case Float:
			values[row], _ = strconv.ParseFloat(s, 64)
		default:
			values[row] = cell
		}
	}
	return &Column{name: name, typ: typ, values: values, raw: raw}
}
