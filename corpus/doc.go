// Package corpus turns a loaded movie plots frame into the inputs of an
// ingestion run: one embeddable text per row and one payload per row.
package corpus
