package builtin

import (
	"fmt"
	"strings"

	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/player"
)

type helpCommand struct {
	*cmd.Base
	srv serverAdapter
}

func newHelpCommand(srv serverAdapter) cmd.Node {
	return helpCommand{
		Base: cmd.NewBase("help",
			cmd.WithDescription("Shows available commands and their usage."),
			cmd.WithUsage("&cUsage: /help [command]"),
			cmd.WithAliases("?"),
		),
		srv: srv,
	}
}

// TabArguments completes the names of all registered commands.
func (h helpCommand) TabArguments() []string {
	return h.srv.Commands().Names()
}

func (h helpCommand) Execute(a *player.Actor, args []string) {
	commands := h.srv.Commands()
	if len(args) > 0 {
		name := strings.TrimPrefix(args[0], "/")
		command, found := commands.ByAlias(name)
		if !found || !runnable(a, command) {
			a.SendFormattedMessage(fmt.Sprintf(cmd.MessageUnknown, name))
			return
		}
		if desc := description(command); desc != "" {
			a.SendMessage("&e/" + command.Name() + "&7: " + desc)
		}
		for _, line := range strings.Split(command.Usage(), "\n") {
			a.SendMessage(line)
		}
		if subs := command.TabArguments(); len(subs) != 0 {
			a.SendMessage("&7Arguments: " + strings.Join(subs, ", "))
		}
		return
	}

	var names []string
	for _, name := range commands.Names() {
		if command, ok := commands.ByAlias(name); ok && runnable(a, command) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		a.SendFormattedMessage("&7No commands available.")
		return
	}

	a.SendFormattedMessage(fmt.Sprintf("&eAvailable commands (%d):", len(names)))
	for _, name := range names {
		command, _ := commands.ByAlias(name)
		line := "&6/" + name
		if desc := description(command); desc != "" {
			line += " &7- " + desc
		}
		a.SendMessage(line)
	}
}

func runnable(a *player.Actor, n cmd.Node) bool {
	return n.Permission() == "" || a.HasPermission(n.Permission())
}
