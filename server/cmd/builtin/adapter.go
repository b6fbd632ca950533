package builtin

import (
	"time"

	"github.com/df-mc/scaffold/server"
	"github.com/df-mc/scaffold/server/cmd"
)

type serverAdapter interface {
	Name() string
	Commands() *cmd.Registry
	StartTime() time.Time
	Operators() *server.Operators
	PluginsEnabled() bool
	Plugins() []server.PluginInfo
	EnablePlugin(path string) (server.PluginInfo, error)
	DisablePlugin(name string) (server.PluginInfo, error)
	ReloadPlugin(name string) (server.PluginInfo, error)
	Close() error
}

var _ serverAdapter = (*server.Server)(nil)
