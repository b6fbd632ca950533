package plugin

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/event"
	"github.com/df-mc/scaffold/server/player"
	"log/slog"
)

type testServer struct{}
type testConfig struct{}

type testHost struct {
	commands *cmd.Registry
}

func newTestHost() testHost {
	return testHost{commands: cmd.NewRegistry()}
}

func (testHost) Instance() testServer { return testServer{} }
func (testHost) Config() testConfig   { return testConfig{} }
func (testHost) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
func (testHost) StartTime() time.Time                 { return time.Time{} }
func (h testHost) Commands() *cmd.Registry            { return h.commands }
func (testHost) ExecuteCommand(player.Sender, string) {}
func (testHost) CloseOnProgramEnd()                   {}
func (testHost) Close() error                         { return nil }
func (testHost) LoadPlugins()                         {}
func (testHost) PluginsEnabled() bool                 { return true }

func TestSanitizePluginDirectory(t *testing.T) {
	cases := map[string]string{
		"":                  "plugin",
		"   ":               "plugin",
		"Example Plugin":    "example-plugin",
		"Example_Plugin":    "example_plugin",
		"Example.Plugin":    "example.plugin",
		"Example@Plugin#":   "example-plugin",
		"--Already-Safe--":  "already-safe",
		"MiXeD CaSe Name":   "mixed-case-name",
		"    dots...here  ": "dots...here",
	}

	for input, want := range cases {
		if got := sanitizePluginDirectory(input); got != want {
			t.Fatalf("sanitizePluginDirectory(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPluginBaseName(t *testing.T) {
	cases := map[string]string{
		"":                "plugin",
		"file":            "file",
		"file.so":         "file",
		"path/to/town":    "town",
		"path/to/town.so": "town",
		"path/.hidden.so": ".hidden",
	}

	for input, want := range cases {
		if got := pluginBaseName(input); got != want {
			t.Fatalf("pluginBaseName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestManagerPluginDataDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: root})

	got := manager.pluginDataDirectory("Town Plugin")
	want := filepath.Join(root, "data", "town-plugin")
	if got != want {
		t.Fatalf("pluginDataDirectory returned %q, want %q", got, want)
	}

	manager.cfg.DataDirectory = "custom"
	got = manager.pluginDataDirectory("Another Plugin")
	want = filepath.Join(root, "custom", "another-plugin")
	if got != want {
		t.Fatalf("pluginDataDirectory with custom root returned %q, want %q", got, want)
	}
}

func TestManagerMigrateDataDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: root})

	from := filepath.Join(root, "old")
	to := filepath.Join(root, "new")
	if err := os.MkdirAll(from, 0o755); err != nil {
		t.Fatalf("create source directory: %v", err)
	}
	payload := []byte("mayor: steve\n")
	if err := os.WriteFile(filepath.Join(from, "towns.yml"), payload, 0o644); err != nil {
		t.Fatalf("write source data: %v", err)
	}

	if err := manager.migrateDataDirectory(from, to); err != nil {
		t.Fatalf("migrate data directory: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(to, "towns.yml"))
	if err != nil {
		t.Fatalf("read migrated file: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("migrated data mismatch: got %q, want %q", string(data), string(payload))
	}
	if _, err := os.Stat(from); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source directory still exists after migrate")
	}

	target := filepath.Join(root, "generated")
	if err := manager.migrateDataDirectory("", target); err != nil {
		t.Fatalf("migrateDataDirectory should create target when source empty: %v", err)
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Fatalf("generated target missing: %v", err)
	}
}

func TestManagerDirectoryResolution(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: root, DataDirectory: "state"})

	if got, want := manager.Directory(), root; got != want {
		t.Fatalf("Directory() = %q, want %q", got, want)
	}
	if got, want := manager.DataRoot(), filepath.Join(root, "state"); got != want {
		t.Fatalf("DataRoot() = %q, want %q", got, want)
	}
	rel := manager.ResolvePath("town.so")
	if want := filepath.Join(root, "town.so"); rel != want {
		t.Fatalf("ResolvePath relative = %q, want %q", rel, want)
	}
	abs := filepath.Join(root, "other.so")
	if got := manager.ResolvePath(abs); got != abs {
		t.Fatalf("ResolvePath absolute = %q, want %q", got, abs)
	}
}

type closingPlugin struct {
	name   string
	closed chan struct{}
	calls  int
}

func (p *closingPlugin) Name() string { return p.name }

func (p *closingPlugin) Close() error {
	p.calls++
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func newClosingPlugin(name string) *closingPlugin {
	return &closingPlugin{name: name, closed: make(chan struct{})}
}

func TestManagerLoadLifecycle(t *testing.T) {
	t.Parallel()

	host := newTestHost()
	manager := NewManager[testServer, testConfig](host, Config{Enabled: true, Directory: t.TempDir()})

	inits := 0
	p := newClosingPlugin("Towny")
	info, err := manager.Load("towny", func(api *API[testServer, testConfig]) (Plugin, error) {
		inits++
		if err := api.RegisterCommand(cmd.New("town", nil)); err != nil {
			return nil, err
		}
		api.RegisterListener("greeter", struct{}{})
		return p, nil
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if info.Name != "Towny" || info.Path != "" {
		t.Fatalf("Load() info = %+v", info)
	}
	if inits != 1 {
		t.Fatalf("factory called %d times, want 1", inits)
	}
	if owner, ok := host.commands.Owner("town"); !ok || owner != "Towny" {
		t.Fatalf("command owner = %q, %v; want Towny", owner, ok)
	}
	if regs := manager.Events().Registrations("Towny"); len(regs) != 1 {
		t.Fatalf("expected listener moved to the plugin's reported name, got %v", regs)
	}

	if _, err := manager.Load("towny", func(*API[testServer, testConfig]) (Plugin, error) {
		t.Fatalf("factory of a conflicting plugin must not run")
		return nil, nil
	}); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("second Load() error = %v, want ErrNameConflict", err)
	}

	manager.Shutdown()
	if p.calls != 1 {
		t.Fatalf("Close called %d times, want 1", p.calls)
	}
	if _, ok := host.commands.ByAlias("town"); ok {
		t.Fatalf("commands of a disabled plugin must be unregistered")
	}
	if regs := manager.Events().Registrations("Towny"); len(regs) != 0 {
		t.Fatalf("listeners of a disabled plugin must be removed, got %v", regs)
	}
	manager.Shutdown()
	if p.calls != 1 {
		t.Fatalf("second Shutdown closed the plugin again")
	}
}

func TestManagerLoadFactoryError(t *testing.T) {
	t.Parallel()

	host := newTestHost()
	manager := NewManager[testServer, testConfig](host, Config{Enabled: true, Directory: t.TempDir()})
	boom := errors.New("boom")
	_, err := manager.Load("broken", func(api *API[testServer, testConfig]) (Plugin, error) {
		_ = api.RegisterCommand(cmd.New("broken", nil))
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want boom", err)
	}
	if _, ok := host.commands.ByAlias("broken"); ok {
		t.Fatalf("commands registered by a failed factory must be removed")
	}
	if len(manager.Infos()) != 0 {
		t.Fatalf("failed plugin should not be listed")
	}
}

func TestManagerLoadContext(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: t.TempDir()})
	var api *API[testServer, testConfig]
	if _, err := manager.Load("town", func(a *API[testServer, testConfig]) (Plugin, error) {
		api = a
		return newClosingPlugin("town"), nil
	}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	ctx := api.Context()
	if ctx.Err() != nil {
		t.Fatalf("context of an enabled plugin is done: %v", ctx.Err())
	}
	if _, err := manager.Disable("town"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("context was not cancelled when the plugin was disabled")
	}
}

func TestManagerNameConflictKeepsRunningPlugin(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	host := newTestHost()
	manager := NewManager[testServer, testConfig](host, Config{Enabled: true, Directory: root})

	first := newClosingPlugin("Town")
	if _, err := manager.Load("first", func(api *API[testServer, testConfig]) (Plugin, error) {
		if err := api.RegisterCommand(cmd.New("town", nil)); err != nil {
			return nil, err
		}
		api.RegisterListener("greeter", struct{}{})
		return first, nil
	}); err != nil {
		t.Fatalf("first Load() error = %v", err)
	}

	second := newClosingPlugin("Town")
	_, err := manager.Load("second", func(api *API[testServer, testConfig]) (Plugin, error) {
		if err := api.RegisterCommand(cmd.New("hamlet", nil)); err != nil {
			return nil, err
		}
		api.RegisterListener("greeter", struct{}{})
		return second, nil
	})
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("second Load() error = %v, want ErrNameConflict", err)
	}
	if second.calls != 1 {
		t.Fatalf("conflicting instance closed %d times, want 1", second.calls)
	}

	if owner, ok := host.commands.Owner("town"); !ok || owner != "Town" {
		t.Fatalf("command of the running plugin: owner = %q, %v; want Town", owner, ok)
	}
	if _, ok := host.commands.ByAlias("hamlet"); ok {
		t.Fatalf("command of the conflicting instance must be removed")
	}
	if regs := manager.Events().Registrations("Town"); len(regs) != 1 {
		t.Fatalf("listeners of the running plugin = %v, want 1", regs)
	}
	if regs := manager.Events().Registrations("second"); len(regs) != 0 {
		t.Fatalf("listeners of the conflicting instance = %v, want none", regs)
	}
	if infos := manager.Infos(); len(infos) != 1 || infos[0].Name != "Town" {
		t.Fatalf("Infos() = %+v", infos)
	}
	if _, err := os.Stat(filepath.Join(root, "data", "town")); err != nil {
		t.Fatalf("data directory of the running plugin: %v", err)
	}
	if first.calls != 0 {
		t.Fatalf("running plugin was closed")
	}
}

func TestManagerReloadInProcess(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: t.TempDir()})
	var created []*closingPlugin
	factory := func(*API[testServer, testConfig]) (Plugin, error) {
		p := newClosingPlugin("town")
		created = append(created, p)
		return p, nil
	}
	if _, err := manager.Load("town", factory); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := manager.Reload("TOWN"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(created) != 2 || created[0].calls != 1 || created[1].calls != 0 {
		t.Fatalf("reload should close the old instance and create a new one")
	}
	if _, err := manager.Reload("nation"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Reload(nation) error = %v, want ErrNotFound", err)
	}
}

func TestManagerAPIConfiguration(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: root})
	template := fstest.MapFS{"config.yml": &fstest.MapFile{Data: []byte("max-members: 12\n")}}

	var maxMembers int
	_, err := manager.Load("town", func(api *API[testServer, testConfig]) (Plugin, error) {
		conf := api.YAML("config", template)
		maxMembers = conf.Int("max-members", 0)
		// A missing template only produces a warning.
		missing := api.YAML("messages", template)
		if missing.Contains("anything") {
			t.Errorf("missing file should be empty")
		}
		return newClosingPlugin("town"), nil
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if maxMembers != 12 {
		t.Fatalf("max-members = %d, want 12", maxMembers)
	}
	if _, err := os.Stat(filepath.Join(root, "data", "town", "config.yml")); err != nil {
		t.Fatalf("config.yml not materialised: %v", err)
	}
}

func TestManagerAPIListeners(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: t.TempDir()})
	var api *API[testServer, testConfig]
	if _, err := manager.Load("town", func(a *API[testServer, testConfig]) (Plugin, error) {
		api = a
		return newClosingPlugin("town"), nil
	}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	type joinListener struct{ id int }
	api.RegisterListener("join", joinListener{id: 1})
	api.RegisterListener("quit", joinListener{id: 2})
	if l, ok := api.Listener("join"); !ok || l.(joinListener).id != 1 {
		t.Fatalf("Listener(join) = %v, %v", l, ok)
	}
	if regs := api.RegisteredListeners(); len(regs) != 2 {
		t.Fatalf("RegisteredListeners() = %v", regs)
	}
	if !api.DeregisterListener("join") {
		t.Fatalf("DeregisterListener(join) should report true")
	}
	api.ClearListeners()
	if regs := api.RegisteredListeners(); len(regs) != 0 {
		t.Fatalf("ClearListeners left %v", regs)
	}
}

func TestManagerDisableAll(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true})

	first := newClosingPlugin("first")
	second := newClosingPlugin("second")

	manager.plugins = []pluginInstance[testServer, testConfig]{
		{name: first.name, plugin: first, path: "first.so"},
		{name: second.name, plugin: second, path: "second.so"},
	}

	infos, err := manager.DisableAll()
	if err != nil {
		t.Fatalf("DisableAll() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("DisableAll() returned %d infos, want 2", len(infos))
	}
	if infos[0].Name != "second" || infos[1].Name != "first" {
		t.Fatalf("DisableAll() order = %v", infos)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("every plugin should be closed exactly once")
	}
	if got := manager.Infos(); len(got) != 0 {
		t.Fatalf("DisableAll() left %d plugins loaded", len(got))
	}
}

func TestManagerDisabled(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: false})

	if infos, err := manager.DisableAll(); !errors.Is(err, ErrDisabled) || infos != nil {
		t.Fatalf("DisableAll() = (%v, %v), want (nil, ErrDisabled)", infos, err)
	}
	if _, err := manager.Load("town", nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Load() error = %v, want ErrDisabled", err)
	}
}

type panickingListener struct{}

func (panickingListener) Handle() { panic("boom") }

func TestManagerListenerPanicDisablesPlugin(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true})

	p := newClosingPlugin("panic")
	manager.plugins = []pluginInstance[testServer, testConfig]{
		{name: "panic", plugin: p, path: "panic.so"},
	}
	manager.events.Subscribe("panic", "bad", panickingListener{})

	event.Emit(manager.Events(), func(h interface{ Handle() }) { h.Handle() })

	select {
	case <-p.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("plugin close was not invoked after panic")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(manager.Infos()) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("plugin was not removed after panic")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if regs := manager.Events().Registrations("panic"); len(regs) != 0 {
		t.Fatalf("expected listeners to be cleared, got %d registrations", len(regs))
	}
}

// Ensure compile-time conformance for the test host.
var _ Host[testServer, testConfig] = testHost{}
