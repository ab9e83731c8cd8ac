package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// PointID identifies a point in a collection. Ingestion uses the source row
// index, so re-running the same corpus upserts the same ids.
type PointID uint64

// MultiVector is a token-level embedding: one vector per token of the source text.
type MultiVector [][]float32

// Payload holds the metadata stored alongside a point.
// Fields missing from the source row are absent from the map.
type Payload map[string]string

// IndexPoint is a single point sent to the index backend.
type IndexPoint struct {
	ID      PointID
	Vector  MultiVector
	Payload Payload
}

// Distance is the vector distance metric declared on a collection.
type Distance string

const (
	// DistanceCosine compares vectors by cosine similarity.
	DistanceCosine Distance = "cosine"
)

// Comparator determines how two multi-vector points are compared.
type Comparator string

const (
	// ComparatorMaxSim scores a query against a point by summing, for every
	// query vector, its best similarity against the point's vectors.
	ComparatorMaxSim Comparator = "max_sim"
)

// DefaultVectorSize is the per-token output dimensionality of ColBERT-style models.
const DefaultVectorSize = 128

// CollectionSpec declares the vector geometry of a collection.
type CollectionSpec struct {
	Name       string
	VectorSize int
	Distance   Distance
	Comparator Comparator
}

// NewCollectionSpec returns a cosine / max-sim spec for the named collection.
func NewCollectionSpec(name string, vectorSize int) CollectionSpec {
	return CollectionSpec{
		Name:       name,
		VectorSize: vectorSize,
		Distance:   DistanceCosine,
		Comparator: ComparatorMaxSim,
	}
}

// Hit is a single search result.
type Hit struct {
	ID    PointID
	Title string
	Year  string
	Score float32
}

// RowRange is a half-open interval [Start, End) of row indices.
type RowRange struct {
	Start int
	End   int
}

// Len returns the number of rows in the range.
func (r RowRange) Len() int {
	return r.End - r.Start
}

// Checkpoint records how much of a corpus has been committed to a collection.
type Checkpoint struct {
	Collection  string
	Fingerprint uint64
	Rows        uint64 // Total rows in the corpus
	Committed   uint64 // Rows known to be committed on the backend
	UpdatedAt   int64  // Unix microseconds
}

// Fingerprint computes a deterministic 64-bit BLAKE2b digest over texts.
// Identical corpora produce identical fingerprints.
func Fingerprint(texts []string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	for _, text := range texts {
		h.Write([]byte(text))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}
