// ABOUTME: Tests for the JSONL tailer: offset tracking, idempotence, and bad-record handling.
// ABOUTME: Exercises the start-at-EOF behavior that skips messages written while down.

package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	require.NoError(t, err)
}

func TestPollReturnsAppendedMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.jsonl")
	w := New(path, nil)

	appendLine(t, path, `{"player_index":1,"player_name":"doug","message":"hello"}`)
	appendLine(t, path, `{"player_index":2,"player_name":"ada","message":"hi","agent":"bore"}`)

	msgs := w.Poll()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Body)
	assert.Equal(t, "doug", msgs[0].PlayerName)
	assert.Equal(t, 1, msgs[0].PlayerIndex)
	assert.Equal(t, "bore", msgs[1].Destination)
}

func TestPollIdempotentWithoutGrowth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.jsonl")
	w := New(path, nil)

	appendLine(t, path, `{"message":"one"}`)
	require.Len(t, w.Poll(), 1)

	// No growth: both subsequent polls are empty.
	assert.Empty(t, w.Poll())
	assert.Empty(t, w.Poll())
}

func TestPollPreservesAppendOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.jsonl")
	w := New(path, nil)

	for _, body := range []string{"first", "second", "third"} {
		appendLine(t, path, `{"message":"`+body+`"}`)
	}

	msgs := w.Poll()
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)
	assert.Equal(t, "third", msgs[2].Body)
}

func TestPollDropsMalformedAndEmptyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.jsonl")
	w := New(path, nil)

	appendLine(t, path, `not json at all`)
	appendLine(t, path, `{"player_index":1}`) // no message body
	appendLine(t, path, ``)
	appendLine(t, path, `{"message":"kept"}`)

	msgs := w.Poll()
	require.Len(t, msgs, 1)
	assert.Equal(t, "kept", msgs[0].Body)
}

func TestFreshWatcherStartsAtEndOfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.jsonl")
	appendLine(t, path, `{"message":"written while down"}`)

	// Simulates a process restart: pre-existing content is never replayed.
	w := New(path, nil)
	assert.Empty(t, w.Poll())

	appendLine(t, path, `{"message":"after restart"}`)
	msgs := w.Poll()
	require.Len(t, msgs, 1)
	assert.Equal(t, "after restart", msgs[0].Body)
}

func TestPollMissingFile(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope.jsonl"), nil)
	assert.Empty(t, w.Poll())
}
