package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/config"
	"github.com/df-mc/scaffold/server/event"
	"github.com/df-mc/scaffold/server/player"
	"log/slog"
)

// API exposes functionality of the server core to plugins. Every plugin
// receives its own API, scoped to the plugin's name and data directory.
type API[S any, C any] struct {
	manager *Manager[S, C]
	host    Host[S, C]
	name    atomic.Value // stores string
	ctx     atomic.Value // stores lifecycle
	dataDir atomic.Value // stores string
}

func newAPI[S any, C any](manager *Manager[S, C], host Host[S, C], name string) *API[S, C] {
	api := &API[S, C]{manager: manager, host: host}
	api.name.Store(name)
	return api
}

// lifecycle wraps the plugin context so that every value stored in API.ctx has
// the same concrete type.
type lifecycle struct {
	ctx context.Context
}

func (api *API[S, C]) setName(name string) {
	if name == "" {
		return
	}
	api.name.Store(name)
}

func (api *API[S, C]) pluginName() string {
	if v := api.name.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "plugin"
}

func (api *API[S, C]) setContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	api.ctx.Store(lifecycle{ctx: ctx})
}

// Context returns a cancellable context that is invalidated when the plugin is disabled.
func (api *API[S, C]) Context() context.Context {
	if v := api.ctx.Load(); v != nil {
		if l, ok := v.(lifecycle); ok && l.ctx != nil {
			return l.ctx
		}
	}
	return context.Background()
}

func (api *API[S, C]) setDataDirectory(dir string) {
	if dir == "" {
		api.dataDir.Store("")
		return
	}
	api.dataDir.Store(filepath.Clean(dir))
}

// DataDirectory returns the path to the plugin's data directory.
func (api *API[S, C]) DataDirectory() string {
	if v := api.dataDir.Load(); v != nil {
		if dir, ok := v.(string); ok && dir != "" {
			return dir
		}
	}
	return api.manager.pluginDataDirectory(api.pluginName())
}

func (api *API[S, C]) resolveDataPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("data path is empty")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("data path must be relative")
	}
	base := api.DataDirectory()
	target := filepath.Join(base, filepath.Clean(name))
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("data path escapes plugin directory")
	}
	return target, nil
}

// EnsureDataSubdir ensures a subdirectory inside the plugin data directory exists and returns its path.
func (api *API[S, C]) EnsureDataSubdir(name string) (string, error) {
	if name == "" {
		dir := api.DataDirectory()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		return dir, nil
	}
	path, err := api.resolveDataPath(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// OpenDataFile opens or creates a file within the plugin data directory using the provided flags and permissions.
func (api *API[S, C]) OpenDataFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	path, err := api.resolveDataPath(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if perm == 0 {
		perm = 0o644
	}
	return os.OpenFile(path, flag, perm)
}

// YAML returns the YAML configuration file name+".yml" in the plugin data
// directory. If the file does not exist, it is written from the file with the
// same name in template, typically an embed.FS bundled with the plugin.
// Failures are logged as warnings and the returned file falls back to the
// template's values.
func (api *API[S, C]) YAML(name string, template fs.FS) *config.YAML {
	file := config.NewYAML(api.DataDirectory(), name, template)
	if err := file.Create(); err != nil {
		api.Logger().Warn("Load configuration file.", "file", name+config.YAMLExtension, "error", err)
	}
	return file
}

// Go launches fn on a new goroutine tied to the plugin's lifecycle context. Panics cause the plugin to be disabled.
func (api *API[S, C]) Go(fn func(context.Context)) {
	if fn == nil {
		return
	}
	ctx := api.Context()
	name := api.pluginName()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				api.manager.handlePluginPanic(name, r)
			}
		}()
		fn(ctx)
	}()
}

// Server returns the underlying server instance.
func (api *API[S, C]) Server() S {
	return api.host.Instance()
}

// Config returns a snapshot of the server configuration at the time of the call.
func (api *API[S, C]) Config() C {
	return api.host.Config()
}

// StartTime reports when the server was started.
func (api *API[S, C]) StartTime() time.Time {
	return api.host.StartTime()
}

// Logger returns a logger scoped to the plugin's name for structured logging.
func (api *API[S, C]) Logger() *slog.Logger {
	logger := api.host.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("plugin", api.pluginName())
}

// RegisterCommand registers a top level command owned by the plugin. The
// command is unregistered when the plugin is disabled.
func (api *API[S, C]) RegisterCommand(command cmd.Node) error {
	return api.host.Commands().Register(api.pluginName(), command)
}

// Commands returns all registered commands indexed by alias.
func (api *API[S, C]) Commands() map[string]cmd.Node {
	return api.host.Commands().Commands()
}

// ExecuteCommand executes a command line on behalf of the provided sender.
func (api *API[S, C]) ExecuteCommand(sender player.Sender, commandLine string) {
	api.host.ExecuteCommand(sender, commandLine)
}

// RegisterListener registers l under name. l receives every event of which it
// implements the handler interface. A listener registered earlier under the
// same name is replaced. The returned function removes the listener.
func (api *API[S, C]) RegisterListener(name string, l any) func() {
	return api.manager.events.Subscribe(api.pluginName(), name, l)
}

// Listener returns the listener the plugin registered under name.
func (api *API[S, C]) Listener(name string) (any, bool) {
	return api.manager.events.Listener(api.pluginName(), name)
}

// RegisteredListeners returns every listener registered by the plugin.
func (api *API[S, C]) RegisteredListeners() []event.Registration {
	return api.manager.events.Registrations(api.pluginName())
}

// DeregisterListener removes the listener registered under name and reports
// if it was present.
func (api *API[S, C]) DeregisterListener(name string) bool {
	return api.manager.events.Remove(api.pluginName(), name)
}

// ClearListeners removes every listener registered by the plugin.
func (api *API[S, C]) ClearListeners() {
	api.manager.events.Clear(api.pluginName())
}

// Plugins returns metadata for all currently loaded plugins.
func (api *API[S, C]) Plugins() []Info {
	return api.manager.Infos()
}

// Plugin returns a loaded plugin by name if present.
func (api *API[S, C]) Plugin(name string) (Plugin, bool) {
	return api.manager.Plugin(name)
}

// EnablePlugin loads and enables a plugin binary by file path.
func (api *API[S, C]) EnablePlugin(path string) (Info, error) {
	return api.manager.Enable(path)
}

// DisablePlugin disables a plugin by its name.
func (api *API[S, C]) DisablePlugin(name string) (Info, error) {
	return api.manager.Disable(name)
}

// ReloadPlugin reloads a plugin by disabling and re-enabling it.
func (api *API[S, C]) ReloadPlugin(name string) (Info, error) {
	return api.manager.Reload(name)
}

// DisableAllPlugins disables every currently loaded plugin and returns metadata for each.
func (api *API[S, C]) DisableAllPlugins() ([]Info, error) {
	return api.manager.DisableAll()
}

// PluginsEnabled reports whether the plugin subsystem is currently active.
func (api *API[S, C]) PluginsEnabled() bool {
	return api.host.PluginsEnabled()
}

// PluginDirectory returns the directory scanned for plugin binaries.
func (api *API[S, C]) PluginDirectory() string {
	return api.manager.Directory()
}

// PluginDataRoot returns the root directory used to persist plugin data.
func (api *API[S, C]) PluginDataRoot() string {
	return api.manager.DataRoot()
}

// ResolvePluginPath resolves the provided path against the configured plugin directory.
func (api *API[S, C]) ResolvePluginPath(path string) string {
	return api.manager.ResolvePath(path)
}

// CloseOnProgramEnd registers a shutdown handler to close the server on termination signals.
func (api *API[S, C]) CloseOnProgramEnd() {
	api.host.CloseOnProgramEnd()
}

// CloseServer requests a graceful server shutdown.
func (api *API[S, C]) CloseServer() error {
	return api.host.Close()
}
