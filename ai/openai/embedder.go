package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/plotdex/ai"
	"github.com/poiesic/plotdex/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/textsplitter"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// Each text is split into chunks and every chunk embedding becomes one
// vector of the text's multi-vector.
type Embedder struct {
	embedder embeddings.Embedder
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.Token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
	)
	return newEmbedderWith(embedder, splitter), nil
}

func newEmbedderWith(embedder embeddings.Embedder, splitter textsplitter.TextSplitter) *Embedder {
	return &Embedder{
		embedder: embedder,
		splitter: splitter,
		logger:   slog.Default().With("component", "openai-embedder"),
	}
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates the multi-vector of a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) (core.MultiVector, error) {
	embeddings, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedTexts chunks every text and embeds all chunks in a single request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([]core.MultiVector, error) {
	if len(texts) == 0 {
		return []core.MultiVector{}, nil
	}

	// offsets[i] is the index of the first chunk of texts[i]
	offsets := make([]int, len(texts)+1)
	var chunks []string
	for i, text := range texts {
		parts, err := e.split(text)
		if err != nil {
			return nil, core.NewBackendExecutionError(fmt.Sprintf("split text %d", i), "", err)
		}
		offsets[i] = len(chunks)
		chunks = append(chunks, parts...)
	}
	offsets[len(texts)] = len(chunks)

	e.logger.Debug("generating embeddings", "texts", len(texts), "chunks", len(chunks))

	vectors, err := e.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(chunks), "err", err)
		return nil, core.NewBackendExecutionError("embedding request failed", "", err)
	}
	if err := core.CheckCount(len(chunks), len(vectors)); err != nil {
		return nil, err
	}

	result := make([]core.MultiVector, len(texts))
	for i := range texts {
		result[i] = core.MultiVector(vectors[offsets[i]:offsets[i+1]])
	}
	return result, nil
}

// split never returns zero chunks, so every text maps to at least one vector.
func (e *Embedder) split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{text}, nil
	}
	parts, err := e.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return []string{text}, nil
	}
	return parts, nil
}
