package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/poiesic/plotdex/core"
)

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
//
// The default behavior maps every lower-cased word of a text to a
// deterministic unit vector, so texts sharing words score higher under
// max-sim than unrelated texts.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	EmbedTextFunc func(ctx context.Context, text string) (core.MultiVector, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([]core.MultiVector, error)

	// Dim is the dimensionality of generated vectors.
	Dim int

	mu        sync.Mutex
	callCount int
	batches   []int
}

// NewMockEmbedder creates a mock embedder producing core.DefaultVectorSize vectors.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return NewMockEmbedderWithDim(core.DefaultVectorSize)
}

// NewMockEmbedderWithDim creates a mock embedder producing vectors of size dim.
func NewMockEmbedderWithDim(dim int) *MockEmbedder {
	return &MockEmbedder{Dim: dim}
}

// EmbedText generates a deterministic multi-vector for text.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) (core.MultiVector, error) {
	m.record(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return MultiVectorFor(text, m.Dim), nil
}

// EmbedTexts generates deterministic multi-vectors for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([]core.MultiVector, error) {
	m.record(len(texts))

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings := make([]core.MultiVector, len(texts))
	for i, text := range texts {
		embeddings[i] = MultiVectorFor(text, m.Dim)
	}
	return embeddings, nil
}

func (m *MockEmbedder) record(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.batches = append(m.batches, n)
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Batches returns the number of texts passed to each call, in call order.
func (m *MockEmbedder) Batches() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batches...)
}

// Reset clears the call history and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.batches = nil
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// MultiVectorFor returns one vector per lower-cased word of text. A text
// without words yields a single vector derived from the empty string.
func MultiVectorFor(text string, dim int) core.MultiVector {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return core.MultiVector{generateDeterministicVector("", dim)}
	}
	mv := make(core.MultiVector, len(words))
	for i, w := range words {
		mv[i] = generateDeterministicVector(w, dim)
	}
	return mv
}

// generateDeterministicVector creates a unit vector seeded by an FNV hash of s.
func generateDeterministicVector(s string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range vector {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 - 0.5
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}
