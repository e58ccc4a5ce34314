// ABOUTME: Configuration loading and parsing for bore-bridge
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete bore-bridge configuration
type Config struct {
	RCON      RCONConfig      `yaml:"rcon"`
	Watch     WatchConfig     `yaml:"watch"`
	Agents    AgentsConfig    `yaml:"agents"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Database  DatabaseConfig  `yaml:"database"`
	Runner    RunnerConfig    `yaml:"runner"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RCONConfig holds the game server's RCON endpoint
type RCONConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

// WatchConfig holds the chat log tailer configuration
type WatchConfig struct {
	// Path is the JSONL file the game mod appends chat lines to
	Path string `yaml:"path"`

	Interval  time.Duration `yaml:"-"`
	DedupeTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	IntervalRaw  string `yaml:"interval"`
	DedupeTTLRaw string `yaml:"dedupe_ttl"`
}

// AgentsConfig holds agent profile discovery and routing defaults
type AgentsConfig struct {
	// Dir contains one TOML profile per agent
	Dir string `yaml:"dir"`
	// Default receives untagged messages
	Default string `yaml:"default"`
}

// SessionsConfig holds continuation token storage configuration
type SessionsConfig struct {
	Dir string `yaml:"dir"`
}

// TasksConfig holds standing task chain configuration
type TasksConfig struct {
	// Dir contains one JSON chain per agent (bore-01.json drives bore-01).
	// Empty disables task chains.
	Dir string `yaml:"dir"`
}

// DatabaseConfig holds transcript/usage persistence configuration
type DatabaseConfig struct {
	// Path to the SQLite file. Empty disables persistence.
	Path string `yaml:"path"`
}

// RunnerConfig holds reasoning CLI invocation configuration
type RunnerConfig struct {
	// Binary is the CLI executable. Defaults to "claude".
	Binary string `yaml:"binary"`
	// MCPConfig is an optional MCP server configuration path passed through
	MCPConfig string `yaml:"mcp_config"`

	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// TelemetryConfig holds the live observation surface configuration
type TelemetryConfig struct {
	// HTTPAddr serves /events and /health. Empty disables the listener.
	HTTPAddr string `yaml:"http_addr"`
	// RelayURL is an optional remote ingest endpoint
	RelayURL   string `yaml:"relay_url"`
	RelayToken string `yaml:"relay_token"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied after parsing
const (
	defaultRCONPort     = 27015
	defaultWatchEvery   = time.Second
	defaultSessionsDir  = "sessions"
	defaultInvokeLimit  = 10 * time.Minute
	defaultRunnerBinary = "claude"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.RCON.Port == 0 {
		c.RCON.Port = defaultRCONPort
	}
	if c.Watch.Interval == 0 {
		c.Watch.Interval = defaultWatchEvery
	}
	if c.Sessions.Dir == "" {
		c.Sessions.Dir = defaultSessionsDir
	}
	if c.Runner.Binary == "" {
		c.Runner.Binary = defaultRunnerBinary
	}
	if c.Runner.Timeout == 0 {
		c.Runner.Timeout = defaultInvokeLimit
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.RCON.Host == "" {
		return fmt.Errorf("rcon.host is required")
	}
	if c.RCON.Password == "" {
		return fmt.Errorf("rcon.password is required")
	}
	if c.RCON.Port <= 0 || c.RCON.Port > 65535 {
		return fmt.Errorf("rcon.port %d is out of range", c.RCON.Port)
	}
	if c.Watch.Path == "" {
		return fmt.Errorf("watch.path is required")
	}
	if c.Agents.Dir == "" {
		return fmt.Errorf("agents.dir is required")
	}
	if c.Agents.Default == "" {
		return fmt.Errorf("agents.default is required")
	}
	if c.Telemetry.RelayToken != "" && c.Telemetry.RelayURL == "" {
		return fmt.Errorf("telemetry.relay_token is set but telemetry.relay_url is empty")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Watch.IntervalRaw != "" {
		cfg.Watch.Interval, err = time.ParseDuration(cfg.Watch.IntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing watch.interval %q: %w", cfg.Watch.IntervalRaw, err)
		}
	}

	if cfg.Watch.DedupeTTLRaw != "" {
		cfg.Watch.DedupeTTL, err = time.ParseDuration(cfg.Watch.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing watch.dedupe_ttl %q: %w", cfg.Watch.DedupeTTLRaw, err)
		}
	}

	if cfg.Runner.TimeoutRaw != "" {
		cfg.Runner.Timeout, err = time.ParseDuration(cfg.Runner.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing runner.timeout %q: %w", cfg.Runner.TimeoutRaw, err)
		}
	}

	return nil
}
