// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides the embedding abstraction used by plotdex.
//
// An Embedder turns each input text into a multi-vector: one vector per
// token (or per chunk, depending on the backend). Results are one-to-one
// and order-preserving with the inputs.
//
// # Implementation Packages
//
//   - ai/subprocess: runs a local ColBERT-style model as a child process
//     and exchanges JSON over stdin and stdout
//   - ai/openai: calls an OpenAI-compatible embeddings API and embeds each
//     text chunk by chunk
//   - ai/mock: deterministic test double
//
// Public constructors return the ai.Embedder interface. The mock returns
// its concrete type so tests can inspect call counts and inject behavior.
//
//	cfg := ai.NewConfig(ai.WithCommand("python3", "jina_colbert.py"))
//	embedder, err := subprocess.NewEmbedder(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := embedder.EmbedTexts(ctx, []string{"Title: Alien Plot: ..."})
//
// Adapters never retry. A failed call surfaces one of the core backend
// errors and the caller decides what to do.
package ai
