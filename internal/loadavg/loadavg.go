// Package loadavg implements the hub's five-level system load detector.
// original_source derives load purely from its own reactor's loop-wake
// frequency; since this port runs goroutine-per-connection rather than a
// single select loop, frequency is approximated from actual host CPU
// sampled via gopsutil (grounded in nabbar-golib/marmos91-dittofs), combined
// with the hub's own upload-byte-rate counter the same way the original
// combines frequency and total-upload thresholds.
package loadavg

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Level is one of the five system load states, ordered least to most
// severe.
type Level int

const (
	LevelNormal Level = iota
	LevelProgressive
	LevelCapacity
	LevelRecovery
	LevelSystemDown
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "Normal"
	case LevelProgressive:
		return "Progressive"
	case LevelCapacity:
		return "Capacity"
	case LevelRecovery:
		return "Recovery"
	case LevelSystemDown:
		return "SystemDown"
	default:
		return "Unknown"
	}
}

// Thresholds configures the CPU-percent and upload-bytes-per-second
// boundaries at which the detector escalates between levels. Each field
// is the minimum value that enters that level; Recovery additionally
// requires dropping back below its own threshold for HysteresisSamples
// consecutive samples before returning to Normal, mirroring the
// original's damped recovery behavior (it does not snap directly from
// SystemDown back to Normal).
type Thresholds struct {
	ProgressiveCPU   float64
	CapacityCPU      float64
	SystemDownCPU    float64
	CapacityUpload   int64 // bytes/sec
	SystemDownUpload int64 // bytes/sec

	HysteresisSamples int
}

// DefaultThresholds returns a conservative starting configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ProgressiveCPU:    60,
		CapacityCPU:       80,
		SystemDownCPU:     95,
		CapacityUpload:    50 << 20,
		SystemDownUpload:  200 << 20,
		HysteresisSamples: 3,
	}
}

// Detector samples host CPU load and the hub's own upload counter on an
// interval, exposing the current Level for handlers to consult. Search
// and ExtJSON reject once the level rises above Capacity.
type Detector struct {
	thresholds Thresholds
	uploadRate func() int64 // bytes/sec, supplied by the hub's writer stats

	level           atomic.Int32
	recoveryStreak  int
	mu              sync.Mutex
	lastSampleError error
}

// NewDetector returns a Detector at LevelNormal. uploadRate is called on
// each sample tick to read the hub's current upload byte rate.
func NewDetector(t Thresholds, uploadRate func() int64) *Detector {
	return &Detector{thresholds: t, uploadRate: uploadRate}
}

// Current returns the most recently sampled level.
func (d *Detector) Current() Level {
	return Level(d.level.Load())
}

// Run samples every interval until ctx is canceled.
func (d *Detector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sample()
		}
	}
}

func (d *Detector) sample() {
	percents, err := cpu.Percent(0, false)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.lastSampleError = err
		return
	}
	d.lastSampleError = nil

	var pct float64
	if len(percents) > 0 {
		pct = percents[0]
	}
	var uploadBps int64
	if d.uploadRate != nil {
		uploadBps = d.uploadRate()
	}

	next := d.classify(pct, uploadBps)
	d.level.Store(int32(next))
}

func (d *Detector) classify(cpuPct float64, uploadBps int64) Level {
	t := d.thresholds
	current := Level(d.level.Load())

	switch {
	case cpuPct >= t.SystemDownCPU || uploadBps >= t.SystemDownUpload:
		d.recoveryStreak = 0
		return LevelSystemDown
	case cpuPct >= t.CapacityCPU || uploadBps >= t.CapacityUpload:
		d.recoveryStreak = 0
		return LevelCapacity
	case cpuPct >= t.ProgressiveCPU:
		d.recoveryStreak = 0
		return LevelProgressive
	default:
		if current == LevelSystemDown || current == LevelCapacity || current == LevelRecovery {
			d.recoveryStreak++
			if d.recoveryStreak >= t.HysteresisSamples {
				d.recoveryStreak = 0
				return LevelNormal
			}
			return LevelRecovery
		}
		return LevelNormal
	}
}

// Reject reports whether handlers gated on system load (Search, ExtJSON)
// should reject at the current level — true at Capacity and above.
func (d *Detector) Reject() bool {
	return d.Current() >= LevelCapacity
}
