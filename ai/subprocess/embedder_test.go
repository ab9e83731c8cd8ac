package subprocess

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/plotdex/ai"
	"github.com/poiesic/plotdex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shellEmbedder(t *testing.T, script string) *Embedder {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	e, err := newEmbedder(ai.NewConfig(ai.WithCommand("sh", "-c", script)))
	require.NoError(t, err)
	return e
}

func TestEmbedTexts_Success(t *testing.T) {
	e := shellEmbedder(t, `cat >/dev/null; echo '[[[1,2],[3,4]],[[5,6]]]'`)

	got, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.MultiVector{{1, 2}, {3, 4}}, got[0])
	assert.Equal(t, core.MultiVector{{5, 6}}, got[1])
}

func TestEmbedText_Single(t *testing.T) {
	e := shellEmbedder(t, `cat >/dev/null; echo '[[[0.5,0.25]]]'`)

	got, err := e.EmbedText(context.Background(), "Title: Alien Plot: In space")
	require.NoError(t, err)
	assert.Equal(t, core.MultiVector{{0.5, 0.25}}, got)
}

func TestEmbedTexts_WritesJSONToStdin(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	e, err := newEmbedder(ai.NewConfig(
		ai.WithCommand("sh", "-c", `cat > input.json; echo '[[[1]],[[2]]]'`),
		ai.WithWorkDir(dir),
	))
	require.NoError(t, err)

	_, err = e.EmbedTexts(context.Background(), []string{"Title: A Plot: x", `quote "y"`})
	require.NoError(t, err)

	input, err := os.ReadFile(filepath.Join(dir, "input.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `["Title: A Plot: x", "quote \"y\""]`, string(input))
}

func TestEmbedTexts_ErrorMarker(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"stderr with exit", `cat >/dev/null; echo 'loading model' >&2; echo 'ERROR: model not found' >&2; exit 1`},
		{"stdout with clean exit", `cat >/dev/null; echo 'ERROR: model not found'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := shellEmbedder(t, tt.script)

			_, err := e.EmbedTexts(context.Background(), []string{"a"})
			var execErr *core.BackendExecutionError
			require.True(t, errors.As(err, &execErr), "got %v", err)
			assert.Equal(t, "model not found", execErr.Message)
		})
	}
}

func TestEmbedTexts_StderrLogLinesIgnoredOnCleanExit(t *testing.T) {
	e := shellEmbedder(t, `cat >/dev/null; echo 'ERROR:root:cuda not found, falling back to cpu' >&2; echo '[[[1,2]]]'`)

	got, err := e.EmbedTexts(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.MultiVector{{1, 2}}, got[0])
}

func TestEmbedTexts_AbnormalExit(t *testing.T) {
	e := shellEmbedder(t, `cat >/dev/null; echo 'Traceback: boom' >&2; exit 3`)

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	var execErr *core.BackendExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Diagnostics, "Traceback: boom")

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestEmbedTexts_MalformedPayload(t *testing.T) {
	e := shellEmbedder(t, `cat >/dev/null; echo 'not json'`)

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	var decodeErr *core.BackendDecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "not json\n", string(decodeErr.Raw))
}

func TestEmbedTexts_WrongShape(t *testing.T) {
	e := shellEmbedder(t, `cat >/dev/null; echo '[[1,2]]'`)

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	var decodeErr *core.BackendDecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestEmbedTexts_CountMismatch(t *testing.T) {
	e := shellEmbedder(t, `cat >/dev/null; echo '[[[1,2]]]'`)

	_, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	var countErr *core.BackendCountMismatchError
	require.True(t, errors.As(err, &countErr))
	assert.Equal(t, 2, countErr.Expected)
	assert.Equal(t, 1, countErr.Actual)
}

func TestEmbedTexts_Timeout(t *testing.T) {
	e := shellEmbedder(t, `exec sleep 10`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.EmbedTexts(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEmbedTexts_EmptyInputSkipsProcess(t *testing.T) {
	e := shellEmbedder(t, `exit 1`)

	got, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbedTexts_MissingCommand(t *testing.T) {
	e, err := newEmbedder(ai.NewConfig(ai.WithCommand("plotdex-no-such-binary")))
	require.NoError(t, err)

	_, err = e.EmbedTexts(context.Background(), []string{"a"})
	var execErr *core.BackendExecutionError
	assert.True(t, errors.As(err, &execErr))
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig(ai.WithCommand()))
	assert.Error(t, err)
}

func TestFindErrorLine(t *testing.T) {
	msg, ok := findErrorLine([]byte("ok\n  ERROR: out of memory  \nlater"))
	assert.True(t, ok)
	assert.Equal(t, "out of memory", msg)

	_, ok = findErrorLine([]byte("[[[1]]]"))
	assert.False(t, ok)

	_, ok = findErrorLine(nil)
	assert.False(t, ok)
}
