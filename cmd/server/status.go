package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/registry"
)

// writeStatus prints the roster and the resource usage of this process.
func writeStatus(w io.Writer, reg *registry.Registry, started time.Time) {
	fmt.Fprintf(w, "state %s, %d open sessions, up %s\n", reg.State(), reg.Count(), time.Since(started).Round(time.Second))

	players := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		Headers("SLOT", "PLAYER", "TRANSPORT", "STATE", "SOLO")
	for _, p := range reg.Players() {
		state := "offline"
		if p.Connected {
			state = "online"
		}
		players.Row(strconv.Itoa(p.Slot), p.Name, string(p.Transport), state, strconv.FormatBool(p.Solo))
	}
	fmt.Fprintln(w, players.Render())

	fmt.Fprintf(w, "goroutines %d", runtime.NumGoroutine())
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		fmt.Fprintln(w)
		return
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		fmt.Fprintf(w, ", rss %.1f MiB", float64(mem.RSS)/(1<<20))
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		fmt.Fprintf(w, ", cpu %.1f%%", cpu)
	}
	fmt.Fprintln(w)
}
