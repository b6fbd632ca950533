package cmd

import (
	"strings"

	"github.com/df-mc/scaffold/server/player"
)

// stopToken ends the subcommand walk of Complete.
const stopToken = `\s`

// Dispatch runs the command tree rooted at root for a. If the first argument
// names a subcommand of root, the argument is consumed and dispatch continues
// at that subcommand. Otherwise root is executed with args unchanged.
//
// A missing permission at any node on the way is reported to a with a single
// formatted message, and nothing is executed.
func Dispatch(root Node, a *player.Actor, args []string) {
	var next Node
	if len(args) > 0 {
		if child, ok := root.Subcommands()[fold(args[0])]; ok && child.Subcommand() {
			next = child
		}
	}
	if !allowed(a, root.Permission()) {
		a.SendFormattedMessage(MessagePermissionDenied)
		return
	}
	if next == nil {
		root.Execute(a, args)
		return
	}
	if !allowed(a, next.Permission()) {
		a.SendFormattedMessage(MessagePermissionDenied)
		return
	}
	Dispatch(next, a, args[1:])
}

// Complete returns the completion candidates for the last of args. Completed
// arguments before it are used to walk down the subcommands of root; the walk
// stops at the first argument that names no child. Candidates are taken from
// the deepest node reached and filtered by the last argument.
func Complete(root Node, args []string) []string {
	if len(args) == 0 {
		return matching("", root.TabArguments())
	}
	node := root
	for _, arg := range args[:len(args)-1] {
		if arg == stopToken {
			break
		}
		child, ok := node.Subcommands()[fold(arg)]
		if !ok {
			break
		}
		node = child
	}
	return matching(args[len(args)-1], node.TabArguments())
}

// allowed reports if a holds permission. An empty permission is held by
// everyone.
func allowed(a *player.Actor, permission string) bool {
	return permission == "" || a.HasPermission(permission)
}

// matching returns the candidates that start with token, ignoring case. The
// order of candidates is kept.
func matching(token string, candidates []string) []string {
	matches := make([]string, 0, len(candidates))
	prefix := fold(token)
	for _, c := range candidates {
		if strings.HasPrefix(fold(c), prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}
