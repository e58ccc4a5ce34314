// ABOUTME: Entry point for bore-bridge, the game-to-AI chat bridge
// ABOUTME: Connects a game server's RCON port to per-agent reasoning workers

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/borelabs/bore-bridge/internal/agent"
	"github.com/borelabs/bore-bridge/internal/bridge"
	"github.com/borelabs/bore-bridge/internal/config"
	"github.com/borelabs/bore-bridge/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                          _          _     _
| |__   ___  _ __ ___      | |__  _ __(_) __| | __ _  ___
| '_ \ / _ \| '__/ _ \_____| '_ \| '__| |/ _' |/ _' |/ _ \
| |_) | (_) | | |  __/_____| |_) | |  | | (_| | (_| |  __/
|_.__/ \___/|_|  \___|     |_.__/|_|  |_|\__,_|\__, |\___|
                                               |___/
`

// getConfigPath returns the path to the bridge config file.
// Priority: BORE_BRIDGE_CONFIG env var > XDG_CONFIG_HOME/bore-bridge/bridge.yaml > ~/.config/bore-bridge/bridge.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BORE_BRIDGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "bridge.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "bore-bridge", "bridge.yaml")
}

func main() {
	// Local overrides (RCON_PASSWORD etc.) live in .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: bore-bridge <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve       Start the bridge")
		fmt.Println("  init        Create a new config file interactively")
		fmt.Println("  health      Check a running bridge's health endpoint")
		fmt.Println("  agents      List configured agent profiles")
		fmt.Println("  transcript  Show an agent's recorded conversation")
		fmt.Println("  usage       Show per-agent reasoning spend")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "agents":
		err = runAgents()
	case "transcript":
		err = runTranscript(ctx)
	case "usage":
		err = runUsage(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("RCON:     %s:%d\n", cfg.RCON.Host, cfg.RCON.Port)
	green.Print("    ▶ ")
	fmt.Printf("Watch:    %s\n", cfg.Watch.Path)
	green.Print("    ▶ ")
	fmt.Printf("Agents:   %s (default %s)\n", cfg.Agents.Dir, cfg.Agents.Default)
	if cfg.Telemetry.HTTPAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:     %s\n", cfg.Telemetry.HTTPAddr)
	}
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Database: %s\n", cfg.Database.Path)
	}
	fmt.Println()

	logger.Info("starting bore-bridge",
		"config", configPath,
		"rcon", fmt.Sprintf("%s:%d", cfg.RCON.Host, cfg.RCON.Port),
		"watch", cfg.Watch.Path,
	)

	return bridge.New(cfg, logger).Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Telemetry.HTTPAddr == "" {
		return fmt.Errorf("telemetry.http_addr is not configured, no health endpoint to check")
	}

	url := fmt.Sprintf("http://%s/health", cfg.Telemetry.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	pretty, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Println(string(pretty))
	return nil
}

func runAgents() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	profiles, err := agent.LoadProfiles(cfg.Agents.Dir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tMAX TURNS\tGROUP\tPLANET")
	for _, p := range profiles {
		model := p.Model
		if model == "" {
			model = "(default)"
		}
		def := ""
		if p.ID == cfg.Agents.Default {
			def = " *"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%d\t%s\t%s\n", p.ID, def, p.Name(), model, p.MaxTurns, p.Group, p.Planet)
	}
	return w.Flush()
}

func runTranscript(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: bore-bridge transcript <agent-id> [limit]")
	}
	agentID := os.Args[2]
	limit := 50
	if len(os.Args) > 3 {
		n, err := strconv.Atoi(os.Args[3])
		if err != nil {
			return fmt.Errorf("invalid limit %q", os.Args[3])
		}
		limit = n
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is not configured, no transcript is recorded")
	}

	db, err := store.Open(cfg.Database.Path, slog.New(slog.DiscardHandler))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	entries, err := db.ListTranscript(ctx, agentID, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no transcript recorded")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-14s %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Author, e.Body)
	}
	return nil
}

func runUsage(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is not configured, no usage is recorded")
	}

	db, err := store.Open(cfg.Database.Path, slog.New(slog.DiscardHandler))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	totals, err := db.AgentUsageTotals(ctx)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Println("no usage recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tINVOCATIONS\tTURNS\tCOST (USD)\tWALL TIME")
	for _, u := range totals {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.4f\t%.1fs\n",
			u.AgentID, u.Invocations, u.TotalTurns, u.TotalCostUSD, float64(u.TotalDurationMS)/1000)
	}
	return w.Flush()
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("bore-bridge configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Game Server ---")
	rconHost := prompt(reader, "RCON host", "127.0.0.1")
	rconPort := prompt(reader, "RCON port", "27015")
	rconPassword := prompt(reader, "RCON password (or ${RCON_PASSWORD})", "${RCON_PASSWORD}")
	watchPath := prompt(reader, "Chat log path", "./script-output/chat.jsonl")

	fmt.Println("\n--- Agents ---")
	agentsDir := prompt(reader, "Agent profiles directory", "./agents")
	defaultAgent := prompt(reader, "Default agent id", "bore-01")
	sessionsDir := prompt(reader, "Sessions directory", "./sessions")

	fmt.Println("\n--- Persistence ---")
	dbPath := prompt(reader, "SQLite database path (empty disables)", "./bridge.db")

	fmt.Println("\n--- Telemetry ---")
	httpAddr := prompt(reader, "Telemetry HTTP address (empty disables)", "127.0.0.1:8700")

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# bore-bridge configuration\n")
	cfg.WriteString("# Generated by bore-bridge init\n\n")

	cfg.WriteString("rcon:\n")
	cfg.WriteString(fmt.Sprintf("  host: \"%s\"\n", rconHost))
	cfg.WriteString(fmt.Sprintf("  port: %s\n", rconPort))
	cfg.WriteString(fmt.Sprintf("  password: \"%s\"\n", rconPassword))
	cfg.WriteString("\n")

	cfg.WriteString("watch:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", watchPath))
	cfg.WriteString("  interval: \"1s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("agents:\n")
	cfg.WriteString(fmt.Sprintf("  dir: \"%s\"\n", agentsDir))
	cfg.WriteString(fmt.Sprintf("  default: \"%s\"\n", defaultAgent))
	cfg.WriteString("\n")

	cfg.WriteString("sessions:\n")
	cfg.WriteString(fmt.Sprintf("  dir: \"%s\"\n", sessionsDir))
	cfg.WriteString("\n")

	if dbPath != "" {
		cfg.WriteString("database:\n")
		cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
		cfg.WriteString("\n")
	}

	cfg.WriteString("runner:\n")
	cfg.WriteString("  binary: \"claude\"\n")
	cfg.WriteString("  timeout: \"10m\"\n")
	cfg.WriteString("\n")

	if httpAddr != "" {
		cfg.WriteString("telemetry:\n")
		cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
		cfg.WriteString("\n")
	}

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Drop agent profiles into %s (one TOML per agent)\n", agentsDir)
	fmt.Println("  2. bore-bridge serve")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
