package server

import (
	"time"

	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/player"
	"github.com/df-mc/scaffold/server/plugin"
	"log/slog"
)

type pluginHost struct {
	srv *Server
}

func newPluginHost(srv *Server) plugin.Host[*Server, Config] {
	return pluginHost{srv: srv}
}

func (h pluginHost) Instance() *Server {
	return h.srv
}

func (h pluginHost) Config() Config {
	return h.srv.conf
}

func (h pluginHost) Logger() *slog.Logger {
	return h.srv.conf.Log
}

func (h pluginHost) StartTime() time.Time {
	return h.srv.StartTime()
}

func (h pluginHost) Commands() *cmd.Registry {
	return h.srv.Commands()
}

func (h pluginHost) ExecuteCommand(sender player.Sender, commandLine string) {
	h.srv.ExecuteCommand(sender, commandLine)
}

func (h pluginHost) CloseOnProgramEnd() {
	h.srv.CloseOnProgramEnd()
}

func (h pluginHost) Close() error {
	return h.srv.Close()
}

func (h pluginHost) LoadPlugins() {
	h.srv.LoadPlugins()
}

func (h pluginHost) PluginsEnabled() bool {
	return h.srv.PluginsEnabled()
}

var _ plugin.Host[*Server, Config] = pluginHost{}
