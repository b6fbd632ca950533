package builtin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/df-mc/scaffold/server"
	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/player"
)

func newOpCommand(srv serverAdapter) cmd.Node {
	root := cmd.New("op", nil,
		cmd.WithPermission(permission("op")),
		cmd.WithDescription("Manages the operators of the server."),
		cmd.WithUsage("&cUsage: /op <add|remove|list> [player]"),
	)

	root.AddSubcommand("add", cmd.New("add", func(a *player.Actor, args []string) {
		name, ok := playerArgument(a, args, "add")
		if !ok {
			return
		}
		added, err := srv.Operators().Add(name)
		if err != nil {
			sendOperatorError(a, name, err)
			return
		}
		if added {
			a.SendFormattedMessage(fmt.Sprintf("&aMade %s a server operator.", name))
			return
		}
		a.SendFormattedMessage(fmt.Sprintf("&7%s is already an operator.", name))
	}, cmd.AsSubcommand(), cmd.WithPermission(permission("op.add"))))

	root.AddSubcommand("remove", cmd.New("remove", func(a *player.Actor, args []string) {
		name, ok := playerArgument(a, args, "remove")
		if !ok {
			return
		}
		removed, err := srv.Operators().Remove(name)
		if err != nil {
			sendOperatorError(a, name, err)
			return
		}
		if removed {
			a.SendFormattedMessage(fmt.Sprintf("&aMade %s no longer a server operator.", name))
			return
		}
		a.SendFormattedMessage(fmt.Sprintf("&7%s is not an operator.", name))
	}, cmd.AsSubcommand(), cmd.WithPermission(permission("op.remove"))))

	root.AddSubcommand("list", cmd.New("list", func(a *player.Actor, _ []string) {
		ops := srv.Operators()
		if ops == nil {
			sendError(a, server.ErrOperatorsUnavailable)
			return
		}
		players := ops.Players()
		a.SendFormattedMessage(fmt.Sprintf("&eOperators: %d player(s).", len(players)))
		if len(players) != 0 {
			a.SendMessage(strings.Join(players, ", "))
		}
	}, cmd.AsSubcommand()))

	return root
}

func playerArgument(a *player.Actor, args []string, sub string) (string, bool) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		a.SendFormattedMessage("&cUsage: /op " + sub + " <player>")
		return "", false
	}
	return args[0], true
}

func sendOperatorError(a *player.Actor, name string, err error) {
	if errors.Is(err, server.ErrOperatorInvalidName) {
		a.SendFormattedMessage(fmt.Sprintf("&cInvalid player name: %s", name))
		return
	}
	sendError(a, err)
}
