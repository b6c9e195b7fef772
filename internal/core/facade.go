package core

import (
	"log/slog"
	"strings"
)

// ProcessCommand hands a chat command to the command processor and returns
// its reply. Text not starting with "!" is not a command and yields "".
func (m *Manager) ProcessCommand(user, cmd string, isMod, isSuperUser bool) string {
	if cmd == "" || !strings.HasPrefix(cmd, "!") {
		return ""
	}

	m.stateMu.Lock()
	p := m.processor
	m.stateMu.Unlock()

	if p == nil {
		slog.Warn("command received without a command processor", "command", cmd)
		return ""
	}
	return p.Process(user, cmd, isMod, isSuperUser)
}
