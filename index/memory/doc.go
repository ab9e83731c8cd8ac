// Package memory provides an in-process index.Backend with exact max-sim
// scoring. It enforces the collection vector size on every upsert.
package memory
