// Package config provides configuration management for the sheetgrab TUI.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the TUI configuration. Download, storage and logging
// settings come from the shared sheetgrab config file at ConfigPath.
type Config struct {
	// ConfigPath is the sheetgrab YAML config file; empty uses defaults
	// and environment variables only.
	ConfigPath string

	// Initial form values
	Source      string
	Destination string

	// PreviewRows is the number of rows shown in the preview table.
	PreviewRows int

	// LogPath receives the application log; the terminal is taken by the UI.
	// Empty discards log output.
	LogPath string

	// ProgressRefresh is how often the elapsed time in the status bar is redrawn.
	ProgressRefresh time.Duration
}

// Load returns configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ConfigPath:      getEnv("SHEETGRAB_CONFIG", ""),
		Source:          getEnv("SHEETGRAB_SOURCE", ""),
		Destination:     getEnv("SHEETGRAB_DESTINATION", ""),
		PreviewRows:     getInt("SHEETGRAB_PREVIEW_ROWS", 50),
		LogPath:         getEnv("SHEETGRAB_TUI_LOG", ""),
		ProgressRefresh: getDuration("SHEETGRAB_PROGRESS_REFRESH", time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
