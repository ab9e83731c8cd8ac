// Package index defines the vector index backend used for ingestion and search.
//
// Two implementations are provided:
//
//   - index/qdrant: a Qdrant server reached over gRPC
//   - index/memory: an in-process index for tests and dry runs
//
// Collections hold multi-vector points compared with cosine similarity and
// the max-sim comparator: the score of a point is the sum, over every query
// vector, of its best cosine similarity against the point's vectors.
package index
