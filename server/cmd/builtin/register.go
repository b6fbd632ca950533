package builtin

import (
	"errors"

	"github.com/df-mc/scaffold/server/cmd"
)

// Register registers the built-in command set on the provided server. The
// commands are owned by the server itself and survive plugin reloads.
func Register(srv serverAdapter) error {
	var errs []error
	for _, command := range []cmd.Node{
		newHelpCommand(srv),
		newPluginsCommand(srv),
		newOpCommand(srv),
		newAboutCommand(srv),
		newStatusCommand(srv),
		newStopCommand(srv),
	} {
		errs = append(errs, srv.Commands().Register("", command))
	}
	return errors.Join(errs...)
}
