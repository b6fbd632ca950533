package builtin

import (
	"fmt"

	"github.com/df-mc/scaffold/server"
	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/player"
)

// permission returns the permission guarding the built-in command path.
func permission(path string) string {
	return "scaffold.command." + path
}

type described interface {
	Description() string
}

// description returns the description of n, if it has one.
func description(n cmd.Node) string {
	if d, ok := n.(described); ok {
		return d.Description()
	}
	return ""
}

// sendError reports err to a in red.
func sendError(a *player.Actor, err error) {
	a.SendFormattedMessage(fmt.Sprintf("&c%v", err))
}

// pluginLabel formats plugin metadata for display.
func pluginLabel(info server.PluginInfo) string {
	label := info.Name
	if info.Version != "" {
		label += " v" + info.Version
	}
	return label
}
