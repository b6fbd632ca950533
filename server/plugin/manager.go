package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"slices"
	"strings"
	"sync"

	"github.com/df-mc/scaffold/server/event"
	"log/slog"
)

var pluginFactorySymbols = []string{"InitPlugin", "Init", "NewPlugin", "New"}

type pluginInstance[S any, C any] struct {
	name    string
	version string
	path    string
	plugin  Plugin
	factory PluginFactory[S, C]
	api     *API[S, C]
	cancel  context.CancelFunc
}

func (pi pluginInstance[S, C]) info() Info {
	return Info{Name: pi.name, Version: pi.version, Path: pi.path}
}

// Manager coordinates plugin discovery, loading, and lifecycle management. It
// owns the listener registry shared by all plugins and removes the commands
// and listeners of a plugin when it is disabled.
type Manager[S any, C any] struct {
	host       Host[S, C]
	cfg        Config
	log        *slog.Logger
	runtimeLog *slog.Logger

	once    sync.Once
	mu      sync.RWMutex
	plugins []pluginInstance[S, C]
	events  *event.Hub
}

// NewManager constructs a Manager using the provided host and configuration snapshot.
func NewManager[S any, C any](host Host[S, C], cfg Config) *Manager[S, C] {
	manager := &Manager[S, C]{
		host: host,
		cfg: Config{
			Enabled:       cfg.Enabled,
			Directory:     cfg.Directory,
			DataDirectory: cfg.DataDirectory,
			Autoload:      cfg.Autoload,
			Files:         slices.Clone(cfg.Files),
		},
	}
	logger := host.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	manager.log = logger
	manager.runtimeLog = logger.With("subsystem", "plugin.runtime")
	manager.events = event.NewHub(logger)
	manager.events.OnPanic(manager.handlePluginPanic)
	return manager
}

// Enabled reports whether the plugin subsystem should run.
func (m *Manager[S, C]) Enabled() bool {
	return m.cfg.Enabled
}

// Events returns the listener registry plugins register their listeners with.
func (m *Manager[S, C]) Events() *event.Hub {
	return m.events
}

// Directory returns the directory searched for plugin binaries.
func (m *Manager[S, C]) Directory() string {
	return m.directory()
}

// DataRoot returns the root directory used for plugin data storage.
func (m *Manager[S, C]) DataRoot() string {
	return m.dataRoot()
}

// ResolvePath resolves path against the configured plugin directory when it is
// not absolute and returns the cleaned result.
func (m *Manager[S, C]) ResolvePath(path string) string {
	return m.resolvePath(path)
}

// LoadConfigured enables the plugin binaries named by the configuration. It
// only has an effect the first time it is called.
func (m *Manager[S, C]) LoadConfigured() {
	m.once.Do(func() {
		m.loadConfigured()
	})
}

// Infos returns metadata for all loaded plugins in load order.
func (m *Manager[S, C]) Infos() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, len(m.plugins))
	for i, p := range m.plugins {
		infos[i] = p.info()
	}
	return infos
}

// Plugin returns a loaded plugin by its case-insensitive name.
func (m *Manager[S, C]) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.plugins {
		if strings.EqualFold(p.name, name) {
			return p.plugin, true
		}
	}
	return nil, false
}

// Load enables a plugin compiled into the program. name is used until the
// plugin reports its own name.
func (m *Manager[S, C]) Load(name string, factory PluginFactory[S, C]) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	if factory == nil {
		return Info{}, fmt.Errorf("load plugin %s: nil factory", name)
	}
	if err := m.ensureDataRoot(); err != nil {
		return Info{}, fmt.Errorf("prepare plugin data storage: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		name = "plugin"
	}
	return m.enable(factory, "", name, "")
}

// Enable loads and enables a Go plugin binary by file path.
func (m *Manager[S, C]) Enable(path string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	if err := m.ensureDirectory(); err != nil {
		return Info{}, fmt.Errorf("prepare plugin directory: %w", err)
	}
	if err := m.ensureDataRoot(); err != nil {
		return Info{}, fmt.Errorf("prepare plugin data storage: %w", err)
	}

	resolved := m.resolvePath(path)

	m.mu.RLock()
	for _, existing := range m.plugins {
		if existing.path == resolved {
			m.mu.RUnlock()
			return existing.info(), ErrAlreadyLoaded
		}
	}
	m.mu.RUnlock()

	mod, err := goplugin.Open(resolved)
	if err != nil {
		return Info{}, fmt.Errorf("open plugin: %w", err)
	}
	factory, symbol, err := lookupPluginFactory[S, C](mod)
	if err != nil {
		return Info{}, fmt.Errorf("locate plugin factory: %w", err)
	}
	return m.enable(factory, symbol, pluginBaseName(resolved), resolved)
}

func (m *Manager[S, C]) enable(factory PluginFactory[S, C], symbol, initialName, path string) (info Info, err error) {
	m.mu.RLock()
	for _, existing := range m.plugins {
		if strings.EqualFold(existing.name, initialName) {
			m.mu.RUnlock()
			return Info{}, fmt.Errorf("%w: %s", ErrNameConflict, initialName)
		}
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithCancel(context.Background())
	api := newAPI(m, m.host, initialName)
	api.setContext(ctx)
	initialDataDir := m.pluginDataDirectory(initialName)
	if err := os.MkdirAll(initialDataDir, 0o755); err != nil {
		cancel()
		return Info{}, fmt.Errorf("create plugin data directory: %w", err)
	}
	api.setDataDirectory(initialDataDir)
	defer func() {
		if err != nil {
			cancel()
			m.release(api.pluginName())
		}
	}()

	via := symbol
	if via == "" {
		via = "factory"
	}
	inst, err := factory(api)
	if err != nil {
		return Info{}, fmt.Errorf("initialise plugin via %s: %w", via, err)
	}
	if inst == nil {
		return Info{}, fmt.Errorf("initialise plugin via %s: factory returned nil", via)
	}

	previousName := api.pluginName()
	name := inst.Name()
	if name == "" {
		name = previousName
	}
	version := ""
	if v, ok := inst.(VersionedPlugin); ok {
		version = v.Version()
	}

	// Registrations of the new instance stay under its initial name until the
	// reported name is known to be free.
	m.mu.Lock()
	for _, existing := range m.plugins {
		if strings.EqualFold(existing.name, name) {
			m.mu.Unlock()
			if err := inst.Close(); err != nil {
				m.log.Error("Close conflicting plugin instance.", "error", err, "name", name, "path", path)
			}
			return Info{}, fmt.Errorf("%w: %s", ErrNameConflict, name)
		}
	}
	api.setName(name)
	if previousName != name {
		m.events.Rename(previousName, name)
		m.host.Commands().RenameOwner(previousName, name)
	}
	if targetDir := m.pluginDataDirectory(name); targetDir != api.DataDirectory() {
		if err := m.migrateDataDirectory(api.DataDirectory(), targetDir); err != nil {
			m.runtimeLog.Error("Migrate plugin data directory.", "plugin", name, "error", err)
		} else {
			api.setDataDirectory(targetDir)
		}
	}
	entry := pluginInstance[S, C]{
		name:    name,
		version: version,
		path:    path,
		plugin:  inst,
		factory: factory,
		api:     api,
		cancel:  cancel,
	}
	m.plugins = append(m.plugins, entry)
	m.mu.Unlock()

	attrs := []any{"name", entry.name}
	if entry.path != "" {
		attrs = append(attrs, "path", entry.path)
	}
	if entry.version != "" {
		attrs = append(attrs, "version", entry.version)
	}
	if symbol != "" {
		attrs = append(attrs, "symbol", symbol)
	}
	m.log.Info("Plugin enabled.", attrs...)

	return entry.info(), nil
}

// Disable disables a plugin by its case-insensitive name and removes it from
// the manager, together with its commands and listeners.
func (m *Manager[S, C]) Disable(name string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	entry, err := m.disable(name)
	if err != nil {
		return Info{}, err
	}
	return entry.info(), nil
}

func (m *Manager[S, C]) disable(name string) (pluginInstance[S, C], error) {
	m.mu.Lock()
	index := -1
	var entry pluginInstance[S, C]
	for i, p := range m.plugins {
		if strings.EqualFold(p.name, name) {
			index = i
			entry = p
			m.plugins = append(m.plugins[:i], m.plugins[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if index == -1 {
		return entry, ErrNotFound
	}

	if err := entry.plugin.Close(); err != nil {
		m.mu.Lock()
		m.plugins = append(m.plugins, entry)
		m.mu.Unlock()
		return entry, fmt.Errorf("close plugin: %w", err)
	}

	if entry.cancel != nil {
		entry.cancel()
	}
	m.release(entry.name)

	m.log.Info("Plugin disabled.", "name", entry.name)
	return entry, nil
}

// Reload disables and then re-enables a plugin by name. Plugin binaries are
// opened again, in-process plugins are created again using their factory.
func (m *Manager[S, C]) Reload(name string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	entry, err := m.disable(name)
	if err != nil {
		return Info{}, err
	}

	var reloaded Info
	if entry.path != "" {
		reloaded, err = m.Enable(entry.path)
	} else {
		reloaded, err = m.enable(entry.factory, "", entry.name, "")
	}
	if err != nil {
		return Info{}, err
	}

	attrs := []any{"name", reloaded.Name}
	if reloaded.Version != "" {
		attrs = append(attrs, "version", reloaded.Version)
	}
	m.log.Info("Plugin reloaded.", attrs...)
	return reloaded, nil
}

// DisableAll disables all currently loaded plugins in reverse load order.
// The returned slice contains metadata for every plugin that was disabled in
// the order the operations were performed.
func (m *Manager[S, C]) DisableAll() ([]Info, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	m.mu.RLock()
	names := make([]string, len(m.plugins))
	for i, p := range m.plugins {
		names[i] = p.name
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		info, err := m.Disable(names[i])
		if err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Shutdown disables all plugins in reverse load order. Errors returned by
// plugins are logged.
func (m *Manager[S, C]) Shutdown() {
	m.mu.Lock()
	plugins := slices.Clone(m.plugins)
	m.plugins = nil
	m.mu.Unlock()

	for i := len(plugins) - 1; i >= 0; i-- {
		entry := plugins[i]
		if entry.cancel != nil {
			entry.cancel()
		}
		m.release(entry.name)
		if err := entry.plugin.Close(); err != nil {
			m.log.Error("Disable plugin.", "error", err, "name", entry.name)
			continue
		}
		m.log.Info("Plugin disabled.", "name", entry.name)
	}
}

// release removes every command and listener owned by the plugin.
func (m *Manager[S, C]) release(name string) {
	m.events.Clear(name)
	if removed := m.host.Commands().UnregisterOwner(name); len(removed) > 0 {
		m.log.Debug("Unregistered plugin commands.", "plugin", name, "commands", removed)
	}
}

func (m *Manager[S, C]) loadConfigured() {
	cfg := m.cfg
	if !cfg.Enabled {
		m.log.Debug("Plugin system disabled.")
		return
	}

	dir := m.directory()
	if err := m.ensureDirectory(); err != nil {
		m.log.Error("Create plugin directory.", "error", err, "dir", dir)
		return
	}

	seen := map[string]struct{}{}
	var paths []string

	if cfg.Autoload {
		entries, err := os.ReadDir(dir)
		if err != nil {
			m.log.Error("Read plugin directory.", "error", err, "dir", dir)
		} else {
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				if !strings.EqualFold(filepath.Ext(entry.Name()), ".so") {
					continue
				}
				path := filepath.Clean(filepath.Join(dir, entry.Name()))
				if _, ok := seen[path]; ok {
					continue
				}
				seen[path] = struct{}{}
				paths = append(paths, path)
			}
		}
	}

	for _, file := range cfg.Files {
		path := m.resolvePath(file)
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}

	if len(paths) == 0 {
		m.log.Debug("No plugins discovered.")
		return
	}

	slices.Sort(paths)
	for _, path := range paths {
		if _, err := m.Enable(path); err != nil {
			m.log.Error("Enable plugin.", "error", err, "path", path)
		}
	}
}

func (m *Manager[S, C]) directory() string {
	if m.cfg.Directory == "" {
		return "plugins"
	}
	return m.cfg.Directory
}

func (m *Manager[S, C]) ensureDirectory() error {
	return os.MkdirAll(m.directory(), 0o755)
}

func (m *Manager[S, C]) resolvePath(path string) string {
	if path == "" {
		return ""
	}

	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) {
		return cleaned
	}

	dir := filepath.Clean(m.directory())
	if cleaned == dir {
		return dir
	}

	// Paths that already start with the plugin directory, such as
	// "plugins/town.so", are not joined with it again.
	if rel, err := filepath.Rel(dir, cleaned); err == nil && rel != ".." && !strings.HasPrefix(rel, fmt.Sprintf("..%c", filepath.Separator)) {
		return cleaned
	}

	return filepath.Clean(filepath.Join(dir, cleaned))
}

func (m *Manager[S, C]) dataRoot() string {
	dir := m.cfg.DataDirectory
	if dir == "" {
		dir = filepath.Join(m.directory(), "data")
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(m.directory(), dir)
	}
	return filepath.Clean(dir)
}

func (m *Manager[S, C]) ensureDataRoot() error {
	return os.MkdirAll(m.dataRoot(), 0o755)
}

func (m *Manager[S, C]) pluginDataDirectory(name string) string {
	return filepath.Join(m.dataRoot(), sanitizePluginDirectory(name))
}

func (m *Manager[S, C]) migrateDataDirectory(from, to string) error {
	if from == to {
		return nil
	}
	if to == "" {
		return fmt.Errorf("empty target data directory")
	}
	if from == "" {
		return os.MkdirAll(to, 0o755)
	}
	info, err := os.Stat(from)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.MkdirAll(to, 0o755)
		}
		return fmt.Errorf("stat source data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source data directory is not a directory")
	}
	if _, err := os.Stat(to); err == nil {
		// The target already holds data from an earlier run; keep it.
		return os.Remove(from)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("ensure target parent: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename data directory: %w", err)
	}
	return nil
}

func (m *Manager[S, C]) handlePluginPanic(name string, reason any) {
	pluginName := name
	if pluginName == "" {
		pluginName = "plugin"
	}
	m.events.Clear(pluginName)
	m.runtimeLog.Error("Plugin panic.", "plugin", pluginName, "panic", reason)
	go func() {
		info, err := m.Disable(pluginName)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				m.runtimeLog.Error("Disable panic plugin.", "plugin", pluginName, "error", err)
			}
			return
		}
		attrs := []any{"name", info.Name}
		if info.Version != "" {
			attrs = append(attrs, "version", info.Version)
		}
		m.runtimeLog.Warn("Plugin disabled after panic.", attrs...)
	}()
}

func pluginBaseName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return "plugin"
	}
	return base
}

func sanitizePluginDirectory(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "plugin"
	}
	lower := strings.ToLower(trimmed)
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, lower)
	sanitized = strings.Trim(sanitized, "-_.")
	if sanitized == "" {
		return "plugin"
	}
	return sanitized
}

func lookupPluginFactory[S any, C any](mod *goplugin.Plugin) (PluginFactory[S, C], string, error) {
	for _, symbol := range pluginFactorySymbols {
		factory, err := exportPluginFactory[S, C](mod, symbol)
		if err != nil {
			if errors.Is(err, errSymbolNotFound) {
				continue
			}
			return nil, symbol, err
		}
		return factory, symbol, nil
	}
	return nil, "", fmt.Errorf("no compatible factory symbol found")
}

var errSymbolNotFound = errors.New("symbol not found")

func exportPluginFactory[S any, C any](mod *goplugin.Plugin, symbol string) (PluginFactory[S, C], error) {
	sym, err := mod.Lookup(symbol)
	if err != nil {
		return nil, errSymbolNotFound
	}
	switch fn := sym.(type) {
	case PluginFactory[S, C]:
		return fn, nil
	case *PluginFactory[S, C]:
		return *fn, nil
	case func(*API[S, C]) (Plugin, error):
		return PluginFactory[S, C](fn), nil
	case *func(*API[S, C]) (Plugin, error):
		return PluginFactory[S, C](*fn), nil
	default:
		return nil, fmt.Errorf("symbol %s has incompatible type %T", symbol, sym)
	}
}
