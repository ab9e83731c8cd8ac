package corpus

import (
	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/table"
)

// Field maps a source column to a payload key.
type Field struct {
	Column string
	Key    string
}

// MovieFields is the payload layout of the movie plots corpus.
var MovieFields = []Field{
	{Column: ColumnTitle, Key: "title"},
	{Column: ColumnReleaseYear, Key: "year"},
	{Column: ColumnOrigin, Key: "origin"},
	{Column: ColumnDirector, Key: "director"},
	{Column: ColumnGenre, Key: "genre"},
}

type boundField struct {
	key    string
	column *table.Column
}

// Projector builds point payloads from frame rows.
type Projector struct {
	fields []boundField
	rows   int
}

// NewProjector binds fields to frame columns. Every field column must exist.
func NewProjector(frame *table.Frame, fields []Field) (*Projector, error) {
	bound := make([]boundField, 0, len(fields))
	for _, f := range fields {
		col, ok := frame.Column(f.Column)
		if !ok {
			return nil, &core.SchemaError{Column: f.Column, Row: -1, Reason: "column not found"}
		}
		bound = append(bound, boundField{key: f.Key, column: col})
	}
	return &Projector{fields: bound, rows: frame.Len()}, nil
}

// Len returns the number of rows the projector can serve.
func (p *Projector) Len() int {
	return p.rows
}

// Payload returns the non-null fields of row. Null cells are omitted.
func (p *Projector) Payload(row int) (core.Payload, error) {
	if row < 0 || row >= p.rows {
		return nil, &core.RowIndexError{Row: row, Len: p.rows}
	}
	payload := make(core.Payload, len(p.fields))
	for _, f := range p.fields {
		if text, ok := f.column.Text(row); ok {
			payload[f.key] = text
		}
	}
	return payload, nil
}
