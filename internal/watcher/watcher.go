// ABOUTME: Byte-offset tailer over the append-only JSONL chat log written by the game mod.
// ABOUTME: Each poll reads only newly appended bytes and drops malformed records.

package watcher

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Message is one inbound chat record from the game. Immutable once read.
type Message struct {
	PlayerIndex int    `json:"player_index"`
	PlayerName  string `json:"player_name"`
	Body        string `json:"message"`
	Destination string `json:"agent"`
}

// Watcher incrementally reads a growing line-delimited JSON log. It tracks
// only a byte offset: a fresh process starts at the current end of file, so
// messages written while the bridge was down are intentionally not replayed.
type Watcher struct {
	path   string
	offset int64
	logger *slog.Logger
}

// New creates a Watcher positioned at the current end of the log file.
func New(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{path: path, logger: logger.With("component", "watcher")}
	if info, err := os.Stat(path); err == nil {
		w.offset = info.Size()
	}
	return w
}

// Poll returns all messages appended since the previous poll, in append
// order. Malformed lines and records without a message body are dropped;
// Poll never fails the whole batch over a single bad record.
func (w *Watcher) Poll() []Message {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil
	}
	size := info.Size()
	if size <= w.offset {
		return nil
	}

	f, err := os.Open(w.path)
	if err != nil {
		w.logger.Warn("opening chat log", "path", w.path, "error", err)
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		w.logger.Warn("seeking chat log", "offset", w.offset, "error", err)
		return nil
	}

	data := make([]byte, size-w.offset)
	if _, err := io.ReadFull(f, data); err != nil {
		w.logger.Warn("reading chat log", "error", err)
		return nil
	}
	w.offset = size

	return w.parseLines(string(data))
}

// parseLines splits newly read bytes on newline and decodes each record.
func (w *Watcher) parseLines(data string) []Message {
	var messages []Message
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			w.logger.Debug("dropping malformed chat line", "error", err)
			continue
		}
		if msg.Body == "" {
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}
