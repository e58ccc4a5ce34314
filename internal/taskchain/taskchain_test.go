// ABOUTME: Tests for task chain loading, cursor advancement, looping,
// ABOUTME: and restart persistence.

package taskchain

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeChain(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestChainWalksTasksInOrder(t *testing.T) {
	path := writeChain(t, t.TempDir(), "bore-01.json", `{
		"chain": [
			{"prompt": "survey ore", "player": 2},
			{"prompt": "plan rails"}
		],
		"loop": false
	}`)
	chain, err := Load(path, discard())
	require.NoError(t, err)

	task, ok := chain.Current()
	require.True(t, ok)
	assert.Equal(t, "survey ore", task.Prompt)
	assert.Equal(t, 2, task.Player)
	chain.Advance()

	task, ok = chain.Current()
	require.True(t, ok)
	assert.Equal(t, "plan rails", task.Prompt)
	assert.Equal(t, 1, task.Player, "player defaults to 1")
	chain.Advance()

	_, ok = chain.Current()
	assert.False(t, ok, "non-looping chain finishes")
	assert.Equal(t, 0, chain.Remaining())
}

func TestChainLoopsWhenConfigured(t *testing.T) {
	path := writeChain(t, t.TempDir(), "loop.json", `{
		"chain": [{"prompt": "a"}, {"prompt": "b"}],
		"loop": true
	}`)
	chain, err := Load(path, discard())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, ok := chain.Current()
		require.True(t, ok, "looping chain never finishes")
		chain.Advance()
	}
	task, ok := chain.Current()
	require.True(t, ok)
	assert.Equal(t, "b", task.Prompt)
}

func TestChainCursorSurvivesRestart(t *testing.T) {
	path := writeChain(t, t.TempDir(), "bore-01.json", `{
		"chain": [{"prompt": "one"}, {"prompt": "two"}, {"prompt": "three"}]
	}`)
	chain, err := Load(path, discard())
	require.NoError(t, err)
	chain.Advance()
	chain.Advance()

	reopened, err := Load(path, discard())
	require.NoError(t, err)
	task, ok := reopened.Current()
	require.True(t, ok)
	assert.Equal(t, "three", task.Prompt)
}

func TestChainValidation(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty task list", func(t *testing.T) {
		path := writeChain(t, dir, "empty.json", `{"chain": []}`)
		_, err := Load(path, discard())
		require.Error(t, err)
	})

	t.Run("task without prompt", func(t *testing.T) {
		path := writeChain(t, dir, "noprompt.json", `{"chain": [{"player": 1}]}`)
		_, err := Load(path, discard())
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeChain(t, dir, "bad.json", `{"chain": [`)
		_, err := Load(path, discard())
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.json"), discard())
		require.Error(t, err)
	})

	t.Run("negative cursor clamps to zero", func(t *testing.T) {
		path := writeChain(t, dir, "neg.json", `{"chain": [{"prompt": "x"}], "current_index": -3}`)
		chain, err := Load(path, discard())
		require.NoError(t, err)
		task, ok := chain.Current()
		require.True(t, ok)
		assert.Equal(t, "x", task.Prompt)
	})
}

func TestLoadDir(t *testing.T) {
	t.Run("keyed by file name", func(t *testing.T) {
		dir := t.TempDir()
		writeChain(t, dir, "bore-01.json", `{"chain": [{"prompt": "dig"}]}`)
		writeChain(t, dir, "scout-02.json", `{"chain": [{"prompt": "scout"}]}`)
		writeChain(t, dir, "notes.txt", "ignored")

		chains, err := LoadDir(dir, discard())
		require.NoError(t, err)
		require.Len(t, chains, 2)
		assert.Contains(t, chains, "bore-01")
		assert.Contains(t, chains, "scout-02")
	})

	t.Run("missing directory means no chains", func(t *testing.T) {
		chains, err := LoadDir(filepath.Join(t.TempDir(), "absent"), discard())
		require.NoError(t, err)
		assert.Nil(t, chains)
	})
}
