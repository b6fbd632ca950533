package plugin

// Config controls the behaviour of the plugin manager.
type Config struct {
	// Enabled specifies if the plugin subsystem should be initialised. When
	// false, no plugins are loaded, including in-process ones.
	Enabled bool
	// Directory is the base directory searched for Go plugin binaries and used
	// to resolve relative paths in Files. It defaults to "plugins".
	Directory string
	// DataDirectory is the root holding one data folder per plugin, where
	// configuration files such as config.yml are materialised. If empty, a
	// `data` directory inside Directory is used. Relative paths are resolved
	// against Directory.
	DataDirectory string
	// Autoload controls whether every .so file in Directory should be probed
	// and loaded by LoadConfigured.
	Autoload bool
	// Files enumerates additional plugin binaries to load. Entries without an
	// absolute path are resolved relative to Directory.
	Files []string
}
