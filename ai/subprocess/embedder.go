package subprocess

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/poiesic/plotdex/ai"
	"github.com/poiesic/plotdex/core"
)

// errorMarker prefixes a failure line printed by the model process.
const errorMarker = "ERROR:"

// waitDelay bounds how long Wait blocks on output pipes after the process
// has been killed.
const waitDelay = 5 * time.Second

// Embedder implements ai.Embedder by running a model process per call.
// The process reads a JSON array of strings on stdin and writes a JSON array
// of multi-vectors on stdout.
type Embedder struct {
	command []string
	dir     string
	logger  *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Embedder{
		command: append([]string(nil), config.Command...),
		dir:     config.WorkDir,
		logger:  slog.Default().With("component", "subprocess-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder running config.Command.
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

// EmbedTexts sends texts to one invocation of the model process.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([]core.MultiVector, error) {
	if len(texts) == 0 {
		return []core.MultiVector{}, nil
	}

	input, err := json.Marshal(texts)
	if err != nil {
		return nil, core.NewBackendExecutionError("encode request", "", err)
	}

	e.logger.Debug("running embedding process", "command", e.command, "count", len(texts))
	start := time.Now()

	cmd := exec.CommandContext(ctx, e.command[0], e.command[1:]...)
	cmd.Dir = e.dir
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.logger.Error("embedding process interrupted", "err", ctxErr)
		return nil, core.NewBackendExecutionError("embedding process interrupted", stderr.String(), ctxErr)
	}

	// A failure line in the response wins over the exit status
	if msg, ok := findErrorLine(stdout.Bytes()); ok {
		e.logger.Error("embedding process reported failure", "message", msg)
		return nil, core.NewBackendExecutionError(msg, stderr.String(), runErr)
	}
	if runErr != nil {
		// stderr markers only name the cause of a failed exit
		msg := runErr.Error()
		if line, ok := findErrorLine(stderr.Bytes()); ok && line != "" {
			msg = line
		}
		e.logger.Error("embedding process failed", "message", msg, "err", runErr)
		return nil, core.NewBackendExecutionError(msg, stderr.String(), runErr)
	}

	var raw [][][]float32
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, core.NewBackendDecodeError(stdout.Bytes(), err)
	}
	if err := core.CheckCount(len(texts), len(raw)); err != nil {
		return nil, err
	}

	embeddings := make([]core.MultiVector, len(raw))
	for i, mv := range raw {
		embeddings[i] = core.MultiVector(mv)
	}

	e.logger.Debug("embedding process finished", "count", len(embeddings), "elapsed", time.Since(start))
	return embeddings, nil
}

// findErrorLine returns the text after the first ERROR: marker in out.
func findErrorLine(out []byte) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), len(out)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, errorMarker); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}
