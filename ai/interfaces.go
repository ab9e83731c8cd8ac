package ai

import (
	"context"

	"github.com/poiesic/plotdex/core"
)

// Embedder generates token-level multi-vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates the multi-vector embedding of a single text.
	EmbedText(ctx context.Context, text string) (core.MultiVector, error)

	// EmbedTexts generates one multi-vector per input text, in input order.
	// The result always has exactly len(texts) entries or an error is returned.
	EmbedTexts(ctx context.Context, texts []string) ([]core.MultiVector, error)
}
