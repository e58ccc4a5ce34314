// ABOUTME: Lua long-bracket string encoding for payloads sent into the game's scripting layer.
// ABOUTME: Picks the minimal nesting level so the payload cannot terminate its own wrapper.

package rcon

import "strings"

// LuaLongString wraps text in a Lua long bracket string, raising the nesting
// level until the closing delimiter no longer occurs inside the text.
func LuaLongString(text string) string {
	level := 0
	for strings.Contains(text, closingBracket(level)) {
		level++
	}
	eq := strings.Repeat("=", level)
	return "[" + eq + "[" + text + "]" + eq + "]"
}

func closingBracket(level int) string {
	return "]" + strings.Repeat("=", level) + "]"
}
