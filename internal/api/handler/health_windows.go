//go:build windows

package handler

import (
	"golang.org/x/sys/windows"
)

// getDiskStats returns disk usage statistics for the given path.
func getDiskStats(path string) (total, free, used int64, usedPct float64) {
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, 0, 0
	}

	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return 0, 0, 0, 0
	}

	total = int64(totalBytes)
	free = int64(freeBytes)
	used = total - free
	if total > 0 {
		usedPct = float64(used) / float64(total) * 100
	}
	return
}

// getCPUUsage is not tracked on Windows.
func getCPUUsage() float64 {
	return 0
}
