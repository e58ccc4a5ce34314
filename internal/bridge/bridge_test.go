// ABOUTME: Integration test for bridge startup and shutdown against a
// ABOUTME: scripted in-process RCON server.

package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borelabs/bore-bridge/internal/agent"
	"github.com/borelabs/bore-bridge/internal/config"
	"github.com/borelabs/bore-bridge/internal/taskchain"
)

// fakeGameServer speaks just enough of the RCON wire protocol to accept
// authentication and answer every command with a fixed reply.
type fakeGameServer struct {
	ln    net.Listener
	reply string

	mu       sync.Mutex
	commands []string
}

func newFakeGameServer(t *testing.T, reply string) *fakeGameServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeGameServer{ln: ln, reply: reply}
	go s.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeGameServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeGameServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *fakeGameServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *fakeGameServer) serve(conn net.Conn) {
	defer conn.Close()
	for {
		id, typ, body, err := readFrame(conn)
		if err != nil {
			return
		}
		switch typ {
		case 3: // auth
			writeFrame(conn, id, 2, "")
		case 2: // exec
			s.mu.Lock()
			s.commands = append(s.commands, body)
			s.mu.Unlock()
			writeFrame(conn, id, 0, s.reply)
		}
	}
}

func readFrame(r io.Reader) (id, typ int32, body string, err error) {
	var length int32
	if err = binary.Read(r, binary.LittleEndian, &length); err != nil {
		return
	}
	payload := make([]byte, length)
	if _, err = io.ReadFull(r, payload); err != nil {
		return
	}
	id = int32(binary.LittleEndian.Uint32(payload[0:4]))
	typ = int32(binary.LittleEndian.Uint32(payload[4:8]))
	body = string(payload[8 : len(payload)-2])
	return
}

func writeFrame(w io.Writer, id, typ int32, body string) {
	payload := make([]byte, 0, 10+len(body))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(id))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(typ))
	payload = append(payload, body...)
	payload = append(payload, 0, 0)
	frame := binary.LittleEndian.AppendUint32(nil, uint32(len(payload)))
	binary.Write(w, binary.LittleEndian, append(frame, payload...))
}

func testConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	dir := t.TempDir()

	agentsDir := filepath.Join(dir, "agents")
	require.NoError(t, os.Mkdir(agentsDir, 0o755))
	profile := "id = \"bore-01\"\ndisplay_name = \"BORE-01\"\nsystem_prompt = \"dig\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(agentsDir, "bore-01.toml"), []byte(profile), 0o644))

	chatLog := filepath.Join(dir, "chat.jsonl")
	require.NoError(t, os.WriteFile(chatLog, nil, 0o644))

	cfg := &config.Config{
		RCON:     config.RCONConfig{Host: "127.0.0.1", Port: port, Password: "pw"},
		Watch:    config.WatchConfig{Path: chatLog, Interval: 10 * time.Millisecond},
		Agents:   config.AgentsConfig{Dir: agentsDir, Default: "bore-01"},
		Sessions: config.SessionsConfig{Dir: filepath.Join(dir, "sessions")},
		Runner:   config.RunnerConfig{Binary: "claude", Timeout: time.Minute},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBridgeStartupAndShutdown(t *testing.T) {
	server := newFakeGameServer(t, "yes")
	cfg := testConfig(t, server.port())
	b := New(cfg, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	// Startup announces every agent to the game.
	require.Eventually(t, func() bool {
		for _, cmd := range server.seen() {
			if strings.Contains(cmd, "register_agent") && strings.Contains(cmd, "BORE-01") {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not shut down")
	}
}

func TestBridgeFatalOnBadAuth(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, typ, _, err := readFrame(conn)
		if err == nil && typ == 3 {
			writeFrame(conn, -1, 2, "") // id -1 signals rejection
		}
	}()

	cfg := testConfig(t, ln.Addr().(*net.TCPAddr).Port)
	b := New(cfg, slog.New(slog.DiscardHandler))

	err = b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication")
}

func TestBridgeFatalOnUnreachableServer(t *testing.T) {
	// Grab a port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := testConfig(t, port)
	b := New(cfg, slog.New(slog.DiscardHandler))

	err = b.Run(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestBridgeHealthSnapshot(t *testing.T) {
	b := New(testConfig(t, 1), slog.New(slog.DiscardHandler))
	snap := b.healthSnapshot()
	agents, ok := snap["agents"].(map[string]any)
	require.True(t, ok)
	assert.Empty(t, agents, "no workers before Run")

	w := agent.NewWorker(agent.WorkerConfig{
		Profile: agent.Profile{ID: "bore-01", SystemPrompt: "dig"},
		Logger:  slog.New(slog.DiscardHandler),
	})
	chainPath := filepath.Join(t.TempDir(), "bore-01.json")
	chainBody := `{"chain": [{"prompt": "survey"}, {"prompt": "dig"}]}`
	require.NoError(t, os.WriteFile(chainPath, []byte(chainBody), 0o644))
	chain, err := taskchain.Load(chainPath, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	b.setWorkers([]*agent.Worker{w})
	b.setChains(map[string]*taskchain.Chain{"bore-01": chain})

	snap = b.healthSnapshot()
	agents, ok = snap["agents"].(map[string]any)
	require.True(t, ok)
	entry, ok := agents["bore-01"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "idle", entry["state"])
	assert.Equal(t, 0, entry["queue"])
	assert.Equal(t, 2, entry["tasks_remaining"])
}
