package table

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// Source supplies the raw bytes of a delimited file.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (io.ReadCloser, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

type step struct {
	desc  string
	apply func(*Frame) (*Frame, error)
}

// Plan is an immutable, deferred description of how to build a Frame.
// Adding a step returns a new Plan; nothing is read until Materialize.
type Plan struct {
	src   Source
	steps []step
}

// Scan starts a plan that reads src as CSV.
func Scan(src Source) *Plan {
	return &Plan{src: src}
}

// Cast appends a type coercion step.
func (p *Plan) Cast(casts map[string]Type) *Plan {
	casts = maps.Clone(casts)
	names := slices.Sorted(maps.Keys(casts))
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s->%s", name, casts[name])
	}
	return p.with(step{
		desc: "cast(" + strings.Join(parts, ", ") + ")",
		apply: func(f *Frame) (*Frame, error) {
			return f.Cast(casts)
		},
	})
}

func (p *Plan) with(s step) *Plan {
	steps := make([]step, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)
	return &Plan{src: p.src, steps: append(steps, s)}
}

// Describe lists the pending steps in order.
func (p *Plan) Describe() []string {
	out := make([]string, 0, len(p.steps)+1)
	out = append(out, "scan(csv)")
	for _, s := range p.steps {
		out = append(out, s.desc)
	}
	return out
}

// Materialize reads the source and applies every step. Either the fully
// transformed frame or an error is returned, never an intermediate frame.
func (p *Plan) Materialize(ctx context.Context) (*Frame, error) {
	if p.src == nil {
		return nil, ErrNoSource
	}
	rc, err := p.src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	frame, err := readCSV(ctx, rc)
	if err != nil {
		return nil, err
	}

	for _, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err = s.apply(frame)
		if err != nil {
			return nil, err
		}
	}
	return frame, nil
}
