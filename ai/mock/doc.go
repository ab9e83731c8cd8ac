// Package mock provides a test double for ai.Embedder.
//
// The mock lets tests run without a model process or network service.
//
//	// Default deterministic behavior
//	embedder := mock.NewMockEmbedderWithDim(8)
//	vectors, err := embedder.EmbedTexts(ctx, []string{"a quiet town"})
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([]core.MultiVector, error) {
//	    return nil, core.NewBackendExecutionError("model not found", "", nil)
//	}
//
//	// Assertions
//	count := embedder.CallCount()
package mock
