package plugin

import "errors"

// Plugin defines an extension that can interact with the server. The factory
// creating a Plugin is its enable hook, Close is its disable hook. Each is
// called exactly once per load.
type Plugin interface {
	// Name returns the display name of the plugin. It should be unique for the
	// lifetime of the server process.
	Name() string
	// Close releases all resources held by the plugin. It is called once when
	// the server shuts down or when the plugin is disabled.
	Close() error
}

// VersionedPlugin may be implemented by plugins to expose a version string.
type VersionedPlugin interface {
	Version() string
}

// PluginFactory is the expected constructor signature exposed by plugins. The
// returned Plugin is enabled immediately and must be ready to handle commands
// and events.
type PluginFactory[S any, C any] func(api *API[S, C]) (Plugin, error)

// Info describes a plugin currently loaded by the manager. Path is empty for
// plugins loaded in-process using Manager.Load.
type Info struct {
	Name    string
	Version string
	Path    string
}

var (
	// ErrDisabled is returned when the plugin subsystem is disabled.
	ErrDisabled = errors.New("plugin subsystem disabled")
	// ErrAlreadyLoaded is returned when attempting to enable a plugin that has
	// already been loaded.
	ErrAlreadyLoaded = errors.New("plugin already loaded")
	// ErrNameConflict is returned when another loaded plugin already uses the
	// same case-insensitive name.
	ErrNameConflict = errors.New("plugin name already registered")
	// ErrNotFound is returned when attempting to disable or reload a plugin that
	// is not currently loaded.
	ErrNotFound = errors.New("plugin not found")
)
