package cmd

import (
	"fmt"
	"strings"

	"github.com/df-mc/scaffold/server/player"
)

// ExecuteLine executes a command line on behalf of the Actor passed. The
// leading slash of commandLine is optional. If the command cannot be found, an
// appropriate message is sent back to the Actor. The optional before function
// may be supplied to intercept execution; returning false from it will stop
// execution. ExecuteLine reports if a command was found.
func ExecuteLine(r *Registry, a *player.Actor, commandLine string, before func(Node, []string) bool) bool {
	if a == nil {
		panic("cmd.ExecuteLine: actor must not be nil")
	}
	args := strings.Fields(strings.TrimPrefix(strings.TrimSpace(commandLine), "/"))
	if len(args) == 0 {
		return false
	}
	name := args[0]

	command, ok := r.ByAlias(name)
	if !ok {
		a.SendFormattedMessage(fmt.Sprintf(MessageUnknown, name))
		return false
	}
	if before != nil && !before(command, args[1:]) {
		return true
	}
	Dispatch(command, a, args[1:])
	return true
}

// CompleteLine returns completion candidates for a partially typed command
// line. While the command name is being typed, the names of the commands a
// may run are suggested. Afterwards completion is delegated to Complete.
func CompleteLine(r *Registry, a *player.Actor, commandLine string) []string {
	line := strings.TrimPrefix(strings.TrimLeft(commandLine, " "), "/")
	args := strings.Fields(line)
	if line == "" || strings.HasSuffix(line, " ") {
		args = append(args, "")
	}
	if len(args) == 1 {
		var names []string
		for _, name := range r.Names() {
			if command, ok := r.ByAlias(name); ok && allowed(a, command.Permission()) {
				names = append(names, name)
			}
		}
		return matching(args[0], names)
	}
	command, ok := r.ByAlias(args[0])
	if !ok || !allowed(a, command.Permission()) {
		return nil
	}
	return Complete(command, args[1:])
}
