// ABOUTME: Routes tailed chat lines to agent inboxes by destination tag.
// ABOUTME: Supports exact-id delivery, "all" broadcast, and a default agent.

package router

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/borelabs/bore-bridge/internal/watcher"
)

// broadcastTag fans a message out to every registered agent.
const broadcastTag = "all"

// defaultTag is an explicit alias for the configured default agent.
const defaultTag = "default"

// Sink is the inbox side of an agent worker.
type Sink interface {
	ID() string
	Enqueue(msg watcher.Message)
}

// Source produces newly appended chat lines. Poll never blocks on the
// game; it returns whatever arrived since the previous call.
type Source interface {
	Poll() []watcher.Message
}

// Config wires a Router. DefaultAgent must name one of Sinks.
type Config struct {
	Source       Source
	Sinks        []Sink
	DefaultAgent string
	// Interval between polls. Zero means one second.
	Interval time.Duration
	// DedupeTTL suppresses byte-identical lines arriving within the
	// window. Zero disables suppression.
	DedupeTTL time.Duration
	Logger    *slog.Logger
}

const (
	defaultInterval = time.Second
	seenCacheSize   = 1024
)

// Router owns the poll loop: it drains the source on a fixed interval and
// hands each message to the matching agent inbox. Routing never blocks;
// a slow agent backs up its own queue, not the loop.
type Router struct {
	source    Source
	sinks     map[string]Sink
	order     []string
	defaultID string
	interval  time.Duration
	seen      *seenCache
	logger    *slog.Logger
}

// New builds a Router. It fails fast on an unknown default agent or a
// duplicate sink id; both are configuration mistakes.
func New(cfg Config) (*Router, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sinks := make(map[string]Sink, len(cfg.Sinks))
	for _, s := range cfg.Sinks {
		id := normalizeDest(s.ID())
		if _, dup := sinks[id]; dup {
			return nil, &ConfigError{Field: "sinks", Reason: "duplicate agent id " + s.ID()}
		}
		sinks[id] = s
	}
	if len(sinks) == 0 {
		return nil, &ConfigError{Field: "sinks", Reason: "at least one agent is required"}
	}

	defaultID := normalizeDest(cfg.DefaultAgent)
	if _, ok := sinks[defaultID]; !ok {
		return nil, &ConfigError{Field: "default_agent", Reason: "unknown agent " + cfg.DefaultAgent}
	}

	order := make([]string, 0, len(sinks))
	for id := range sinks {
		order = append(order, id)
	}
	sort.Strings(order)

	var seen *seenCache
	if cfg.DedupeTTL > 0 {
		seen = newSeenCache(cfg.DedupeTTL, seenCacheSize)
	}

	return &Router{
		source:    cfg.Source,
		sinks:     sinks,
		order:     order,
		defaultID: defaultID,
		interval:  cfg.Interval,
		seen:      seen,
		logger:    cfg.Logger.With("component", "router"),
	}, nil
}

// ConfigError is a routing misconfiguration caught at construction.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "router config: " + e.Field + ": " + e.Reason
}

// Run polls until ctx is cancelled. A final drain on shutdown is skipped
// on purpose: undelivered lines stay in the log file for the next start.
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Dispatch(r.source.Poll())
		}
	}
}

// Dispatch routes a batch of messages. Exported so tests and manual
// injection paths can bypass the poll loop.
func (r *Router) Dispatch(msgs []watcher.Message) {
	for _, msg := range msgs {
		if r.seen != nil && r.seen.checkAndMark(messageKey(msg)) {
			r.logger.Debug("duplicate line suppressed", "player", msg.PlayerName)
			continue
		}
		r.route(msg)
	}
}

func (r *Router) route(msg watcher.Message) {
	dest := normalizeDest(msg.Destination)

	switch dest {
	case broadcastTag:
		for _, id := range r.order {
			r.sinks[id].Enqueue(msg)
		}
		r.logger.Info("message broadcast",
			"player", msg.PlayerName,
			"agents", len(r.order))
		return

	case "", defaultTag:
		dest = r.defaultID
	}

	sink, ok := r.sinks[dest]
	if !ok {
		r.logger.Warn("message for unknown agent dropped",
			"destination", msg.Destination,
			"player", msg.PlayerName)
		return
	}
	sink.Enqueue(msg)
	r.logger.Debug("message routed", "agent", sink.ID(), "player", msg.PlayerName)
}

func normalizeDest(dest string) string {
	return strings.ToLower(strings.TrimSpace(dest))
}
