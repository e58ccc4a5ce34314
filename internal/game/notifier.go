// ABOUTME: Game-side command surface: response/status/registration callbacks over RCON.
// ABOUTME: Wraps every payload in a Lua long-bracket string before remote.call dispatch.

package game

import (
	"fmt"
	"strings"

	"github.com/borelabs/bore-bridge/internal/rcon"
)

// remoteInterface is the name the in-game mod registers its callbacks under.
const remoteInterface = "claude_interface"

// Notifier sends bridge-to-game callbacks through a shared command executor.
// All calls are synchronous; callers that treat a notification as best-effort
// are responsible for logging and continuing on error.
type Notifier struct {
	exec rcon.Executor
}

// NewNotifier creates a Notifier on top of a (usually guarded) executor.
func NewNotifier(exec rcon.Executor) *Notifier {
	return &Notifier{exec: exec}
}

// SendResponse relays an agent's final reply to a player's chat panel.
func (n *Notifier) SendResponse(playerIndex int, agentName, text string) error {
	cmd := fmt.Sprintf(
		`/silent-command remote.call("%s", "receive_response", %d, %s, %s)`,
		remoteInterface, playerIndex, rcon.LuaLongString(agentName), rcon.LuaLongString(text),
	)
	_, err := n.exec.Execute(cmd)
	return err
}

// SendToolStatus shows the tool an agent is currently running.
func (n *Notifier) SendToolStatus(playerIndex int, agentName, toolName string) error {
	cmd := fmt.Sprintf(
		`/silent-command remote.call("%s", "tool_status", %d, %s, %s)`,
		remoteInterface, playerIndex, rcon.LuaLongString(agentName), rcon.LuaLongString(toolName),
	)
	_, err := n.exec.Execute(cmd)
	return err
}

// SetStatus updates the per-player status line (e.g. "Thinking...").
func (n *Notifier) SetStatus(playerIndex int, status string) error {
	cmd := fmt.Sprintf(
		`/silent-command remote.call("%s", "set_status", %d, %s)`,
		remoteInterface, playerIndex, rcon.LuaLongString(status),
	)
	_, err := n.exec.Execute(cmd)
	return err
}

// RegisterAgent announces an agent identity to the in-game UI.
func (n *Notifier) RegisterAgent(agentName string) error {
	cmd := fmt.Sprintf(
		`/silent-command remote.call("%s", "register_agent", %s)`,
		remoteInterface, rcon.LuaLongString(agentName),
	)
	_, err := n.exec.Execute(cmd)
	return err
}

// ModLoaded reports whether the in-game mod has registered its remote interface.
func (n *Notifier) ModLoaded() (bool, error) {
	cmd := fmt.Sprintf(
		`/silent-command rcon.print(remote.interfaces["%s"] and "yes" or "no")`,
		remoteInterface,
	)
	out, err := n.exec.Execute(cmd)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "yes", nil
}
