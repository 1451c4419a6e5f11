// Package analytics samples host resource utilization and maintains the
// cached server-load snapshot broadcast to connected members.
package analytics

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// cpuSampleWindow is the wait between the two CPU tick samples; usage is the
// idle-time delta over this window.
const cpuSampleWindow = 200 * time.Millisecond

// Measurement is one finalized resource axis in a snapshot.
type Measurement struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Usage    float64 `json:"usage"`
	Change   float64 `json:"change"`
	Capacity string  `json:"capacity"`
}

// DeviceShare and PageStat are static descriptive sections copied from the
// baseline dataset into every snapshot.
type DeviceShare struct {
	Device string  `json:"device"`
	Share  float64 `json:"share"`
}

type PageStat struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// Metadata marks how a snapshot was produced.
type Metadata struct {
	Source   string `json:"source"`
	Attempts int    `json:"attempts,omitempty"`
}

// Snapshot is a point-in-time view of server load.
type Snapshot struct {
	GeneratedAt     time.Time     `json:"generatedAt"`
	ServerLoad      []Measurement `json:"serverLoad"`
	DeviceBreakdown []DeviceShare `json:"deviceBreakdown"`
	TopPages        []PageStat    `json:"topPages"`
	Metadata        Metadata      `json:"metadata"`
	FallbackReasons []string      `json:"fallbackReasons,omitempty"`
}

// Sampler produces snapshots. Implemented by Collector; faked in tests.
type Sampler interface {
	Collect(ctx context.Context) (*Snapshot, error)
}

// Collector samples CPU, memory and disk utilization of the host. Previous
// finalized values are kept per measurement id across calls so each sample
// carries a change percentage.
type Collector struct {
	mu       sync.Mutex
	previous map[string]float64
	logger   *zap.Logger
}

// NewCollector creates a collector with empty change-tracking state.
func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{previous: make(map[string]float64), logger: logger}
}

// Collect samples all three resource axes. A failing axis is omitted and
// logged; only a fully failed collection returns an error.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	var (
		measurements []Measurement
		reasons      []string
	)

	if pct, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false); err != nil || len(pct) == 0 {
		reasons = append(reasons, "cpu: "+errString(err))
		c.logger.Warn("cpu sample failed", zap.Error(err))
	} else {
		capacity := fmt.Sprintf("%d Kerne", runtime.NumCPU())
		measurements = append(measurements, c.finalize("cpu", "CPU", pct[0], capacity))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		reasons = append(reasons, "memory: "+errString(err))
		c.logger.Warn("memory sample failed", zap.Error(err))
	} else {
		measurements = append(measurements, c.finalize("memory", "Arbeitsspeicher", vm.UsedPercent, humanBytes(vm.Total)))
	}

	wd, err := os.Getwd()
	if err != nil {
		wd = "/"
	}
	if du, err := disk.UsageWithContext(ctx, wd); err != nil {
		reasons = append(reasons, "disk: "+errString(err))
		c.logger.Warn("disk sample failed", zap.Error(err))
	} else {
		measurements = append(measurements, c.finalize("disk", "Festplatte", du.UsedPercent, humanBytes(du.Total)))
	}

	if len(measurements) == 0 {
		return nil, fmt.Errorf("all resource probes failed: %s", strings.Join(reasons, "; "))
	}

	return &Snapshot{
		GeneratedAt:     time.Now(),
		ServerLoad:      measurements,
		DeviceBreakdown: baselineDeviceBreakdown(),
		TopPages:        baselineTopPages(),
		Metadata:        Metadata{Source: "live"},
	}, nil
}

// finalize clamps and rounds a raw usage percentage and computes the change
// relative to the previous finalized value for the same measurement id.
func (c *Collector) finalize(id, label string, usage float64, capacity string) Measurement {
	usage = round(clamp(usage, 0, 100), 1)

	c.mu.Lock()
	prev, ok := c.previous[id]
	c.previous[id] = usage
	c.mu.Unlock()

	var change float64
	if ok && prev > 0 {
		change = round(clamp((usage-prev)/prev*100, -500, 500), 2)
	}

	return Measurement{ID: id, Label: label, Usage: usage, Change: change, Capacity: capacity}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

func humanBytes(b uint64) string {
	const unit = 1024
	switch {
	case b >= unit*unit*unit*unit:
		return fmt.Sprintf("%.1f TB", float64(b)/(unit*unit*unit*unit))
	case b >= unit*unit*unit:
		return fmt.Sprintf("%.1f GB", float64(b)/(unit*unit*unit))
	case b >= unit*unit:
		return fmt.Sprintf("%.1f MB", float64(b)/(unit*unit))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func errString(err error) string {
	if err == nil {
		return "no data"
	}
	return err.Error()
}
