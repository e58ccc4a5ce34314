// ABOUTME: Top-level orchestrator: wires RCON, the chat tailer, the router,
// ABOUTME: per-agent workers, persistence, and telemetry into one process.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/borelabs/bore-bridge/internal/agent"
	"github.com/borelabs/bore-bridge/internal/config"
	"github.com/borelabs/bore-bridge/internal/game"
	"github.com/borelabs/bore-bridge/internal/rcon"
	"github.com/borelabs/bore-bridge/internal/router"
	"github.com/borelabs/bore-bridge/internal/session"
	"github.com/borelabs/bore-bridge/internal/store"
	"github.com/borelabs/bore-bridge/internal/taskchain"
	"github.com/borelabs/bore-bridge/internal/watcher"
)

// Bridge is the assembled process. Build with New, then Run blocks until
// the context is cancelled.
type Bridge struct {
	cfg    *config.Config
	logger *slog.Logger

	mu         sync.Mutex
	workerList []*agent.Worker
	chainList  map[string]*taskchain.Chain
}

// New creates a Bridge from validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{cfg: cfg, logger: logger.With("component", "bridge")}
}

// Run starts every subsystem and blocks until ctx is cancelled or startup
// fails. A bad RCON password is fatal: nothing works without the game link.
func (b *Bridge) Run(ctx context.Context) error {
	profiles, err := agent.LoadProfiles(b.cfg.Agents.Dir)
	if err != nil {
		return fmt.Errorf("loading agent profiles: %w", err)
	}
	b.logger.Info("agent profiles loaded", "count", len(profiles))

	client, err := rcon.Dial(b.cfg.RCON.Host, b.cfg.RCON.Port, b.cfg.RCON.Password)
	if err != nil {
		if errors.Is(err, rcon.ErrAuthFailed) {
			return fmt.Errorf("rcon authentication rejected, check the password: %w", err)
		}
		return fmt.Errorf("connecting to game server: %w", err)
	}
	defer client.Close()
	b.logger.Info("rcon connected", "host", b.cfg.RCON.Host, "port", b.cfg.RCON.Port)

	notifier := game.NewNotifier(rcon.NewSafeClient(client))

	if loaded, err := notifier.ModLoaded(); err != nil {
		b.logger.Warn("mod presence check failed", "error", err)
	} else if !loaded {
		b.logger.Warn("game mod not detected, in-game callbacks will be ignored")
	}
	for _, p := range profiles {
		if err := notifier.RegisterAgent(p.Name()); err != nil {
			b.logger.Warn("agent registration failed", "agent", p.ID, "error", err)
		}
	}

	sessions, err := session.NewStore(b.cfg.Sessions.Dir)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}

	var recorder agent.Recorder
	if b.cfg.Database.Path != "" {
		db, err := store.Open(b.cfg.Database.Path, b.logger)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		recorder = db
	}

	var chains map[string]*taskchain.Chain
	if b.cfg.Tasks.Dir != "" {
		chains, err = taskchain.LoadDir(b.cfg.Tasks.Dir, b.logger)
		if err != nil {
			return fmt.Errorf("loading task chains: %w", err)
		}
		if len(chains) > 0 {
			b.logger.Info("task chains loaded", "count", len(chains))
		}
	}
	b.setChains(chains)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, shutdownTelemetry := b.startTelemetry(runCtx)
	defer shutdownTelemetry()

	runner := &agent.CLIRunner{
		Binary:    b.cfg.Runner.Binary,
		MCPConfig: b.cfg.Runner.MCPConfig,
	}

	workers := make([]*agent.Worker, 0, len(profiles))
	sinks := make([]router.Sink, 0, len(profiles))
	for _, p := range profiles {
		var tasks agent.TaskSource
		if chain, ok := chains[p.ID]; ok {
			tasks = chain
		}
		w := agent.NewWorker(agent.WorkerConfig{
			Profile:  p,
			Runner:   runner,
			Sessions: sessions,
			Notifier: notifier,
			Tasks:    tasks,
			Recorder: recorder,
			Observer: tel,
			Timeout:  b.cfg.Runner.Timeout,
			Logger:   b.logger,
		})
		workers = append(workers, w)
		sinks = append(sinks, w)
	}
	b.setWorkers(workers)

	rt, err := router.New(router.Config{
		Source:       watcher.New(b.cfg.Watch.Path, b.logger),
		Sinks:        sinks,
		DefaultAgent: b.cfg.Agents.Default,
		Interval:     b.cfg.Watch.Interval,
		DedupeTTL:    b.cfg.Watch.DedupeTTL,
		Logger:       b.logger,
	})
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	for _, w := range workers {
		w.Start(runCtx)
	}
	b.logger.Info("bridge running",
		"agents", len(workers),
		"watch", b.cfg.Watch.Path)

	rt.Run(runCtx)

	// Shutdown: the router has stopped polling; workers are killed through
	// the shared context, including any in-flight reasoning process.
	cancel()
	for _, w := range workers {
		w.Wait()
	}
	b.logger.Info("bridge stopped")
	return nil
}
