// ABOUTME: Telemetry wiring for the bridge: broadcaster, optional relay
// ABOUTME: pusher, and the HTTP listener serving /events and /health.

package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/borelabs/bore-bridge/internal/agent"
	"github.com/borelabs/bore-bridge/internal/taskchain"
	"github.com/borelabs/bore-bridge/internal/telemetry"
)

const httpShutdownGrace = 5 * time.Second

// startTelemetry builds the telemetry stack from configuration. It returns
// a nil facade when no surface is enabled; workers emit into it regardless
// since a nil facade drops everything. The returned func shuts the stack
// down and is safe to call once.
func (b *Bridge) startTelemetry(ctx context.Context) (*telemetry.Telemetry, func()) {
	cfg := b.cfg.Telemetry
	if cfg.HTTPAddr == "" && cfg.RelayURL == "" {
		return nil, func() {}
	}

	broadcaster := telemetry.NewBroadcaster(b.logger)

	var relay *telemetry.RelayPusher
	if cfg.RelayURL != "" {
		relay = telemetry.NewRelayPusher(cfg.RelayURL, cfg.RelayToken, b.logger)
		relay.Start(ctx)
		b.logger.Info("telemetry relay enabled", "url", cfg.RelayURL)
	}

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		handler := telemetry.NewServer(broadcaster, b.healthSnapshot, b.logger).Handler()
		srv = &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
		go func() {
			b.logger.Info("telemetry http listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				b.logger.Error("telemetry http server failed", "error", err)
			}
		}()
	}

	shutdown := func() {
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownGrace)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				b.logger.Warn("telemetry http shutdown", "error", err)
			}
		}
		if relay != nil {
			relay.Wait()
		}
	}

	return telemetry.New(broadcaster, relay), shutdown
}

// healthSnapshot reports per-agent worker state for the /health endpoint.
// Agents driven by a task chain also report how many tasks are left.
func (b *Bridge) healthSnapshot() map[string]any {
	chains := b.chains()
	agents := make(map[string]any)
	for _, w := range b.workers() {
		entry := map[string]any{
			"state": string(w.State()),
			"queue": w.QueueLen(),
		}
		if chain, ok := chains[w.ID()]; ok {
			entry["tasks_remaining"] = chain.Remaining()
		}
		agents[w.ID()] = entry
	}
	return map[string]any{"agents": agents}
}

func (b *Bridge) workers() []*agent.Worker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.workerList
}

func (b *Bridge) setWorkers(ws []*agent.Worker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.workerList = ws
}

func (b *Bridge) chains() map[string]*taskchain.Chain {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chainList
}

func (b *Bridge) setChains(cs map[string]*taskchain.Chain) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainList = cs
}
