package pools

import (
	"runtime"
	"runtime/debug"
	"time"
)

// GCConfig holds garbage collector settings.
type GCConfig struct {
	// Percent is the GOGC target. Zero keeps the runtime default.
	Percent int
	// MemoryLimit is the soft memory limit in bytes. Zero means no limit.
	MemoryLimit int64
}

// ApplyGCConfig applies cfg and returns the previous GOGC value.
func ApplyGCConfig(cfg GCConfig) int {
	prev := -1
	if cfg.Percent > 0 {
		prev = debug.SetGCPercent(cfg.Percent)
	}
	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}
	return prev
}

// GCStats holds garbage collection statistics.
type GCStats struct {
	NumGC        uint32
	PauseTotal   time.Duration
	LastPause    time.Duration
	AllocBytes   uint64
	Sys          uint64
	NumGoroutine int
}

// ReadGCStats returns current garbage collection statistics.
func ReadGCStats() GCStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := GCStats{
		NumGC:        ms.NumGC,
		PauseTotal:   time.Duration(ms.PauseTotalNs),
		AllocBytes:   ms.Alloc,
		Sys:          ms.Sys,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if ms.NumGC > 0 {
		stats.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
	}
	return stats
}
