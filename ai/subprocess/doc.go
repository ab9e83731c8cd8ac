// Package subprocess implements ai.Embedder on top of a local model process.
//
// Each EmbedTexts call starts the configured command, writes the texts as a
// JSON array of strings to its stdin and decodes its stdout as a JSON array
// with one list of token vectors per text:
//
//	stdin:  ["Title: Alien Plot: ...", "Title: Heat Plot: ..."]
//	stdout: [[[0.1, ...], [0.3, ...]], [[0.2, ...]]]
//
// A line starting with "ERROR:" on either stream marks the call as failed.
// Cancelling the context kills the process.
package subprocess
