package plugin

import (
	"log/slog"
	"time"

	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/player"
)

// Host exposes the subset of server functionality required by the plugin
// manager and APIs.
type Host[S any, C any] interface {
	// Instance returns the underlying server value.
	Instance() S
	// Config returns a snapshot of the server configuration.
	Config() C
	// Logger returns the logger used for structured diagnostics.
	Logger() *slog.Logger
	// StartTime reports the time the server was started.
	StartTime() time.Time
	// Commands returns the command registry plugins register their commands
	// with.
	Commands() *cmd.Registry
	// ExecuteCommand runs a command line on behalf of the given sender.
	ExecuteCommand(sender player.Sender, commandLine string)
	// CloseOnProgramEnd closes the server when the program receives termination signals.
	CloseOnProgramEnd()
	// Close shuts the underlying server down.
	Close() error
	// LoadPlugins triggers discovery and activation for configured plugins.
	LoadPlugins()
	// PluginsEnabled reports if the plugin system is active.
	PluginsEnabled() bool
}
