package builtin

import (
	"fmt"
	"runtime"
	"runtime/metrics"
	"sync"
	"time"

	"github.com/df-mc/scaffold/server/cmd"
	"github.com/df-mc/scaffold/server/player"
)

func newStatusCommand(srv serverAdapter) cmd.Node {
	return cmd.New("status", func(a *player.Actor, _ []string) {
		status(srv, a)
	}, cmd.WithPermission(permission("status")), cmd.WithDescription("Displays server performance statistics."))
}

func status(srv serverAdapter, a *player.Actor) {
	if start := srv.StartTime(); !start.IsZero() {
		a.SendMessage(fmt.Sprintf("&7Uptime: &f%s", time.Since(start).Round(time.Second)))
	}
	a.SendMessage(fmt.Sprintf("&7Plugins: &f%d &7| Commands: &f%d", len(srv.Plugins()), len(srv.Commands().Names())))

	if cpuLoad, ready := sampleAverageCPULoad(); ready {
		a.SendMessage(fmt.Sprintf("&7CPU load (per core): &f%.2f%% &7across &f%d &7cores", cpuLoad, runtime.NumCPU()))
	} else {
		a.SendMessage("&7CPU load: collecting baseline, try again shortly.")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	lastGC := "never"
	if mem.LastGC != 0 {
		lastGC = fmt.Sprintf("%s ago", time.Since(time.Unix(0, int64(mem.LastGC))).Round(time.Second))
	}
	a.SendMessage(fmt.Sprintf("&7Memory: &f%.2f MiB &7heap used / &f%.2f MiB &7reserved", bytesToMiB(mem.HeapAlloc), bytesToMiB(mem.HeapSys)))
	a.SendMessage(fmt.Sprintf("&7Goroutines: &f%d &7| GOMAXPROCS: &f%d &7| GC cycles: &f%d &7| Last GC: &f%s", runtime.NumGoroutine(), runtime.GOMAXPROCS(0), mem.NumGC, lastGC))
}

var (
	cpuSampleMu       sync.Mutex
	cpuSampleLastTime time.Time
	cpuSampleLastUsed float64
)

func sampleAverageCPULoad() (float64, bool) {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
	}
	metrics.Read(samples)
	if samples[0].Value.Kind() != metrics.KindFloat64 {
		return 0, false
	}
	total := samples[0].Value.Float64()
	now := time.Now()

	cpuSampleMu.Lock()
	defer cpuSampleMu.Unlock()

	ready := !cpuSampleLastTime.IsZero()
	deltaTime := now.Sub(cpuSampleLastTime).Seconds()
	deltaUsed := total - cpuSampleLastUsed

	cpuSampleLastTime = now
	cpuSampleLastUsed = total

	if !ready || deltaTime <= 0 || deltaUsed < 0 {
		return 0, false
	}

	usage := (deltaUsed / deltaTime / float64(runtime.NumCPU())) * 100
	return min(max(usage, 0), 100), true
}

func bytesToMiB(v uint64) float64 {
	return float64(v) / (1024 * 1024)
}
