package server

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/event"
	"github.com/df-mc/scaffold/server/player"
	"github.com/df-mc/scaffold/server/plugin"
	"log/slog"
)

// Server hosts plugins and the commands they register. A Server is created
// using Config.New.
type Server struct {
	conf    Config
	started time.Time

	commands *cmd.Registry
	plugins  *plugin.Manager[*Server, Config]

	once    sync.Once
	closing chan struct{}
}

// CommandHandler is implemented by listeners that are notified before a
// command is executed. Cancelling ctx stops the command from running.
type CommandHandler interface {
	HandleCommand(ctx *event.Context, a *player.Actor, command cmd.Node, args []string)
}

// Name returns the name of the server.
func (srv *Server) Name() string {
	return srv.conf.Name
}

// Commands returns the registry holding all commands of the server.
func (srv *Server) Commands() *cmd.Registry {
	return srv.commands
}

// Events returns the listener registry shared by all plugins.
func (srv *Server) Events() *event.Hub {
	return srv.plugins.Events()
}

// Operators returns the operator list of the server. It is nil if none was
// configured.
func (srv *Server) Operators() *Operators {
	return srv.conf.Operators
}

// StartTime returns the time the server was created.
func (srv *Server) StartTime() time.Time {
	return srv.started
}

// PluginsEnabled reports if the plugin subsystem is enabled.
func (srv *Server) PluginsEnabled() bool {
	return srv.plugins.Enabled()
}

// LoadPlugins loads the plugin binaries configured in Config.Plugins. Calling
// it more than once has no effect.
func (srv *Server) LoadPlugins() {
	srv.plugins.LoadConfigured()
}

// LoadPlugin enables a plugin compiled into the program.
func (srv *Server) LoadPlugin(name string, factory PluginFactory) (PluginInfo, error) {
	return srv.plugins.Load(name, factory)
}

// Plugins returns metadata for all loaded plugins in load order.
func (srv *Server) Plugins() []PluginInfo {
	return srv.plugins.Infos()
}

// Plugin returns a loaded plugin by its case-insensitive name.
func (srv *Server) Plugin(name string) (Plugin, bool) {
	return srv.plugins.Plugin(name)
}

// EnablePlugin loads and enables the plugin binary at path.
func (srv *Server) EnablePlugin(path string) (PluginInfo, error) {
	return srv.plugins.Enable(path)
}

// DisablePlugin disables a loaded plugin by its case-insensitive name.
func (srv *Server) DisablePlugin(name string) (PluginInfo, error) {
	return srv.plugins.Disable(name)
}

// ReloadPlugin disables and enables a loaded plugin again.
func (srv *Server) ReloadPlugin(name string) (PluginInfo, error) {
	return srv.plugins.Reload(name)
}

// ExecuteCommand executes a command line on behalf of sender. Senders on the
// operator list hold every permission. Listeners implementing CommandHandler
// are notified before the command runs and may cancel it. ExecuteCommand
// reports if the command was found.
func (srv *Server) ExecuteCommand(sender player.Sender, commandLine string) bool {
	a := srv.actor(sender)
	return cmd.ExecuteLine(srv.commands, a, commandLine, func(command cmd.Node, args []string) bool {
		ctx := event.C()
		event.Emit(srv.Events(), func(h CommandHandler) {
			h.HandleCommand(ctx, a, command, args)
		})
		return !ctx.Cancelled()
	})
}

// CompleteCommand returns completion candidates for a partially typed command
// line of sender.
func (srv *Server) CompleteCommand(sender player.Sender, commandLine string) []string {
	return cmd.CompleteLine(srv.commands, srv.actor(sender), commandLine)
}

// CloseOnProgramEnd closes the server right before the program ends, so that
// all plugins are disabled properly. Calling CloseOnProgramEnd is
// non-blocking.
func (srv *Server) CloseOnProgramEnd() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			if err := srv.Close(); err != nil {
				srv.conf.Log.Error("Close server.", "error", err)
			}
		case <-srv.closing:
		}
		signal.Stop(c)
	}()
}

// Close disables all plugins in reverse load order. Close may be called more
// than once.
func (srv *Server) Close() error {
	srv.once.Do(func() {
		srv.conf.Log.Info("Server closing...")
		srv.plugins.Shutdown()
		close(srv.closing)
		srv.conf.Log.Info("Server closed.")
	})
	return nil
}

// Done returns a channel that is closed once the server is closed.
func (srv *Server) Done() <-chan struct{} {
	return srv.closing
}

func (srv *Server) actor(sender player.Sender) *player.Actor {
	if srv.conf.Operators == nil {
		return player.New(sender)
	}
	return player.New(operatorSender{Sender: sender, ops: srv.conf.Operators, log: srv.conf.Log})
}

// operatorSender grants every permission to senders on the operator list.
type operatorSender struct {
	player.Sender
	ops *Operators
	log *slog.Logger
}

func (s operatorSender) Unwrap() player.Sender { return s.Sender }

func (s operatorSender) HasPermission(permission string) bool {
	return s.IsOp() || s.Sender.HasPermission(permission)
}

func (s operatorSender) IsOp() bool {
	if op, ok := s.Sender.(player.Operator); ok && op.IsOp() {
		return true
	}
	return s.ops.Contains(s.Name())
}

func (s operatorSender) SetOp(op bool) {
	var err error
	if op {
		_, err = s.ops.Add(s.Name())
	} else {
		_, err = s.ops.Remove(s.Name())
	}
	if err != nil {
		s.log.Error("Update operator list.", "player", s.Name(), "op", op, "error", err)
		return
	}
	if o, ok := s.Sender.(player.Operator); ok {
		o.SetOp(op)
	}
}
