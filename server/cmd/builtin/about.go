package builtin

import (
	"runtime"
	"runtime/debug"
	"time"

	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/player"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
)

func newAboutCommand(srv serverAdapter) cmd.Node {
	return cmd.New("about", func(a *player.Actor, _ []string) {
		about(srv, a)
	}, cmd.WithDescription("Displays server and build information."), cmd.WithAliases("version", "ver"))
}

func about(srv serverAdapter, a *player.Actor) {
	a.SendFormattedMessage("&b" + srv.Name())

	info, ok := debug.ReadBuildInfo()
	goVersion := runtime.Version()
	if ok && info != nil && info.GoVersion != "" {
		goVersion = info.GoVersion
	}

	a.SendMessage("&7Minecraft version: &f" + protocol.CurrentVersion)
	a.SendMessage("&7Go runtime: &f" + goVersion)

	if info != nil {
		revision := ""
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				revision = setting.Value
				break
			}
		}
		if revision != "" {
			a.SendMessage("&7Commit: &f" + revision)
		}
	}

	if started := srv.StartTime(); !started.IsZero() {
		a.SendMessage("&7Uptime: &f" + time.Since(started).Round(time.Second).String())
	}
}
