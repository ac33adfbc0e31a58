package router

import (
	"html"
	"strings"
)

// helpText renders the command list in Telegram HTML parse mode.
func (m *Router) helpText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := []string{"📚 <b>Commands</b>", ""}
	for _, name := range m.order {
		c := m.cmds[name]
		line := "• <code>/" + html.EscapeString(name) + "</code>"
		if c.Description != "" {
			line += " - " + html.EscapeString(c.Description)
		}
		lines = append(lines, line)
		if c.Usage != "" {
			lines = append(lines, "  usage: <code>"+html.EscapeString(c.Usage)+"</code>")
		}
	}
	return strings.Join(lines, "\n")
}
