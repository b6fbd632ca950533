package builtin

import (
	"slices"
	"strconv"
	"strings"

	"github.com/df-mc/scaffold/server"
	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/player"
)

// pluginNameCommand is a plugins subcommand that takes the name of a loaded
// plugin and completes it.
type pluginNameCommand struct {
	*cmd.Func
	srv serverAdapter
}

// TabArguments completes the names of the loaded plugins.
func (p pluginNameCommand) TabArguments() []string {
	infos := p.srv.Plugins()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names
}

func newPluginsCommand(srv serverAdapter) cmd.Node {
	root := cmd.New("plugins", func(a *player.Actor, _ []string) {
		listPlugins(srv, a)
	},
		cmd.WithPermission(permission("plugins")),
		cmd.WithDescription("Manages plugins."),
		cmd.WithUsage("&cUsage: /plugins <list|enable|disable|reload>"),
		cmd.WithAliases("pl", "plugin"),
	)

	root.AddSubcommand("list", cmd.New("list", func(a *player.Actor, _ []string) {
		listPlugins(srv, a)
	}, cmd.AsSubcommand()))

	root.AddSubcommand("enable", cmd.New("enable", func(a *player.Actor, args []string) {
		if !pluginsEnabled(srv, a) {
			return
		}
		if len(args) == 0 {
			a.SendFormattedMessage("&cUsage: /plugins enable <file>")
			return
		}
		info, err := srv.EnablePlugin(strings.Join(args, " "))
		if err != nil {
			sendError(a, err)
			return
		}
		a.SendFormattedMessage("&aEnabled " + pluginLabel(info) + " from " + info.Path + ".")
	}, cmd.AsSubcommand(), cmd.WithPermission(permission("plugins.enable"))))

	root.AddSubcommand("disable", pluginNameCommand{srv: srv, Func: cmd.New("disable", func(a *player.Actor, args []string) {
		if !pluginsEnabled(srv, a) {
			return
		}
		if len(args) == 0 {
			a.SendFormattedMessage("&cUsage: /plugins disable <name>")
			return
		}
		info, err := srv.DisablePlugin(args[0])
		if err != nil {
			sendError(a, err)
			return
		}
		a.SendFormattedMessage("&aDisabled " + pluginLabel(info) + ".")
	}, cmd.AsSubcommand(), cmd.WithPermission(permission("plugins.disable")))})

	root.AddSubcommand("reload", pluginNameCommand{srv: srv, Func: cmd.New("reload", func(a *player.Actor, args []string) {
		if !pluginsEnabled(srv, a) {
			return
		}
		if len(args) == 0 {
			a.SendFormattedMessage("&cUsage: /plugins reload <name>")
			return
		}
		info, err := srv.ReloadPlugin(args[0])
		if err != nil {
			sendError(a, err)
			return
		}
		a.SendFormattedMessage("&aReloaded " + pluginLabel(info) + ".")
	}, cmd.AsSubcommand(), cmd.WithPermission(permission("plugins.reload")))})

	return root
}

func pluginsEnabled(srv serverAdapter, a *player.Actor) bool {
	if !srv.PluginsEnabled() {
		a.SendFormattedMessage("&cPlugin subsystem disabled.")
		return false
	}
	return true
}

func listPlugins(srv serverAdapter, a *player.Actor) {
	if !pluginsEnabled(srv, a) {
		return
	}
	plugins := slices.Clone(srv.Plugins())
	if len(plugins) == 0 {
		a.SendFormattedMessage("&7No plugins loaded.")
		return
	}
	slices.SortStableFunc(plugins, func(x, y server.PluginInfo) int {
		return strings.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name))
	})
	names := make([]string, 0, len(plugins))
	for _, info := range plugins {
		names = append(names, "&a"+pluginLabel(info))
	}
	a.SendFormattedMessage("&ePlugins (" + strconv.Itoa(len(plugins)) + "): " + strings.Join(names, "&7, "))
}
