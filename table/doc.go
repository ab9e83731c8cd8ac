// Package table loads delimited corpus files into immutable, typed frames.
//
// A Frame is built either eagerly with ReadCSV or lazily through a Plan:
//
//	frame, err := table.Scan(src).
//	    Cast(map[string]table.Type{"Release Year": table.String}).
//	    Materialize(ctx)
//
// Plan steps compose without touching the source. Materialize reads the
// source once and applies every step before returning, so consumers only
// ever see a fully coerced frame.
package table
