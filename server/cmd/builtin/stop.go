package builtin

import (
	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/player"
)

func newStopCommand(srv serverAdapter) cmd.Node {
	return cmd.New("stop", func(a *player.Actor, _ []string) {
		a.SendFormattedMessage("&eStopping server...")
		if err := srv.Close(); err != nil {
			sendError(a, err)
		}
	}, cmd.WithPermission(permission("stop")), cmd.WithDescription("Stops the server."))
}
