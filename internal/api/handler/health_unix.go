//go:build !windows

package handler

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// CPU tracking state for calculating delta between polls
var (
	cpuMu          sync.Mutex
	lastCPUTime    time.Duration // user + system time
	lastWallTime   time.Time
	cpuInitialized bool
)

// getDiskStats returns disk usage statistics for the given path.
func getDiskStats(path string) (total, free, used int64, usedPct float64) {
	var statfs unix.Statfs_t
	if err := unix.Statfs(path, &statfs); err == nil {
		total = int64(statfs.Blocks) * int64(statfs.Bsize)
		free = int64(statfs.Bavail) * int64(statfs.Bsize)
		used = total - free
		if total > 0 {
			usedPct = float64(used) / float64(total) * 100
		}
	}
	return
}

// getCPUUsage returns the CPU usage percentage for this process since last call.
func getCPUUsage() float64 {
	var rusage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}

	userTime := time.Duration(rusage.Utime.Nano())
	sysTime := time.Duration(rusage.Stime.Nano())
	totalCPUTime := userTime + sysTime

	now := time.Now()

	cpuMu.Lock()
	defer cpuMu.Unlock()

	if !cpuInitialized {
		lastCPUTime = totalCPUTime
		lastWallTime = now
		cpuInitialized = true
		return 0
	}

	cpuDelta := totalCPUTime - lastCPUTime
	wallDelta := now.Sub(lastWallTime)

	lastCPUTime = totalCPUTime
	lastWallTime = now

	if wallDelta <= 0 {
		return 0
	}

	// Single-core equivalent, capped at 100%.
	pct := float64(cpuDelta) / float64(wallDelta) * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	return pct
}
