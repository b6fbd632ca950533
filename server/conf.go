package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/df-mc/scaffold/server/chat"
	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/plugin"
	"github.com/pelletier/go-toml"
)

// Config contains options for starting a plugin host Server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Name is the name of the server. It is shown by the about command.
	Name string
	// Prefix is the banner put in front of every formatted message sent to
	// command senders, for example "&7[&bScaffold&7]". Ampersand formatting
	// codes are supported. It is applied process-wide once, when the Server is
	// created.
	Prefix string
	// Plugins controls the plugin subsystem. If Plugins.Enabled is false, no
	// plugins can be loaded.
	Plugins plugin.Config
	// Operators is the list of operators of the server. Operators hold every
	// permission. If nil, senders are only operators if they report so
	// themselves.
	Operators *Operators
	// Commands is the registry commands are registered in. If nil, a new
	// registry is created.
	Commands *cmd.Registry
}

// New creates a Server using fields of conf. Plugins are not loaded until
// Server.LoadPlugins is called.
func (conf Config) New() *Server {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Name == "" {
		conf.Name = "Scaffold Server"
	}
	if conf.Commands == nil {
		conf.Commands = cmd.NewRegistry()
	}
	if conf.Prefix != "" {
		chat.SetPrefix(conf.Prefix)
	}
	conf.Plugins.Files = append([]string(nil), conf.Plugins.Files...)

	srv := &Server{
		conf:     conf,
		started:  time.Now(),
		commands: conf.Commands,
		closing:  make(chan struct{}),
	}
	srv.plugins = plugin.NewManager[*Server, Config](newPluginHost(srv), conf.Plugins)
	return srv
}

// UserConfig is the user configuration for a Scaffold server. It holds
// settings that affect different aspects of the server, such as its name and
// the plugins it loads. UserConfig may be serialised and can be converted to a
// Config by calling UserConfig.Config(). Every setting may be overridden using
// the environment variable named in its env tag.
type UserConfig struct {
	Server struct {
		// Name is the name of the server.
		Name string `env:"SCAFFOLD_SERVER_NAME"`
		// Prefix is put in front of formatted messages sent to players.
		// Ampersand formatting codes such as &a may be used.
		Prefix string `env:"SCAFFOLD_SERVER_PREFIX"`
	}
	Plugins struct {
		// Enabled controls if plugins are loaded at all.
		Enabled bool `env:"SCAFFOLD_PLUGINS_ENABLED"`
		// Folder is the folder plugin binaries are loaded from.
		Folder string `env:"SCAFFOLD_PLUGINS_FOLDER"`
		// DataFolder is the folder holding one data folder per plugin. It is
		// resolved relative to Folder.
		DataFolder string `env:"SCAFFOLD_PLUGINS_DATA_FOLDER"`
		// Autoload controls if every .so file in Folder is loaded on startup.
		Autoload bool `env:"SCAFFOLD_PLUGINS_AUTOLOAD"`
		// Files lists plugin binaries to load in addition to the ones found by
		// Autoload.
		Files []string `env:"SCAFFOLD_PLUGINS_FILES"`
	}
	Operators struct {
		// File is the path to the TOML file that stores operator names.
		File string `env:"SCAFFOLD_OPERATORS_FILE"`
	}
}

// LoadUserConfig reads the UserConfig stored in the TOML file at path and
// applies environment overrides. If the file does not exist yet, it is
// written using DefaultConfig.
func LoadUserConfig(path string) (UserConfig, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		encoded, err := toml.Marshal(c)
		if err != nil {
			return c, fmt.Errorf("encode default config: %w", err)
		}
		if err := os.WriteFile(path, encoded, 0644); err != nil {
			return c, fmt.Errorf("create default config: %w", err)
		}
	case err != nil:
		return c, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse environment: %w", err)
	}
	return c, nil
}

// Config converts a UserConfig to a Config, so that it may be used for creating
// a Server. An error is returned if the operator list could not be loaded.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	conf := Config{
		Log:    log,
		Name:   uc.Server.Name,
		Prefix: uc.Server.Prefix,
		Plugins: plugin.Config{
			Enabled:       uc.Plugins.Enabled,
			Directory:     uc.Plugins.Folder,
			DataDirectory: uc.Plugins.DataFolder,
			Autoload:      uc.Plugins.Autoload,
			Files:         uc.Plugins.Files,
		},
	}
	operatorsFile := strings.TrimSpace(uc.Operators.File)
	if operatorsFile == "" {
		operatorsFile = "operators.toml"
	}
	ops, err := LoadOperators(operatorsFile)
	if err != nil {
		return conf, fmt.Errorf("load operators: %w", err)
	}
	conf.Operators = ops
	return conf, nil
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Server.Name = "Scaffold Server"
	c.Server.Prefix = "&7[&bScaffold&7]"
	c.Plugins.Enabled = true
	c.Plugins.Folder = "plugins"
	c.Plugins.DataFolder = "data"
	c.Plugins.Autoload = true
	c.Operators.File = "operators.toml"
	return c
}
