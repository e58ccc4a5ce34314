// ABOUTME: HTTP surface for live telemetry: an SSE event stream plus a
// ABOUTME: health endpoint reporting bridge and worker state.

package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 15 * time.Second

// HealthFunc supplies the health payload; the bridge wires in worker state.
type HealthFunc func() map[string]any

// Server is the read-only HTTP surface of the bridge.
type Server struct {
	broadcaster *Broadcaster
	health      HealthFunc
	logger      *slog.Logger
}

// NewServer builds the HTTP surface. health may be nil.
func NewServer(broadcaster *Broadcaster, health HealthFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		broadcaster: broadcaster,
		health:      health,
		logger:      logger.With("component", "http"),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// handleEvents streams telemetry as server-sent events. ?agent=<id>
// filters to one agent.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.broadcaster.Subscribe(r.Context(), r.URL.Query().Get("agent"))
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("event not encodable", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if s.health != nil {
		for k, v := range s.health() {
			payload[k] = v
		}
	}
	payload["subscribers"] = s.broadcaster.SubscriberCount()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("health response not written", "error", err)
	}
}
