// Package config handles configuration loading for bore-bridge.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	rcon:
//	  password: "${RCON_PASSWORD}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	watch:
//	  interval: "500ms"
//	runner:
//	  timeout: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Game server endpoint:
//
//	rcon:
//	  host: "127.0.0.1"
//	  port: 27015
//	  password: "${RCON_PASSWORD}"
//
// Chat log tailer:
//
//	watch:
//	  path: "./script-output/chat.jsonl"
//	  interval: "1s"
//	  dedupe_ttl: "2s"     # optional; 0 disables duplicate suppression
//
// Agents and routing:
//
//	agents:
//	  dir: "./agents"      # one TOML profile per agent
//	  default: "bore-01"   # receives untagged messages
//
// Conversation continuity:
//
//	sessions:
//	  dir: "./sessions"
//
// Standing task chains (optional):
//
//	tasks:
//	  dir: "./tasks"       # one JSON chain per agent
//
// Transcript and usage persistence (optional):
//
//	database:
//	  path: "./bridge.db"
//
// Reasoning CLI:
//
//	runner:
//	  binary: "claude"
//	  mcp_config: "./mcp.json"
//	  timeout: "10m"
//
// Telemetry (optional):
//
//	telemetry:
//	  http_addr: "127.0.0.1:8700"   # /events SSE stream and /health
//	  relay_url: "https://relay.example.com"
//	  relay_token: "${RELAY_TOKEN}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - RCON host, port range, and password presence
//   - Watch path presence
//   - Agents directory and default agent presence
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("./config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
