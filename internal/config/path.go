package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir picks where the store lives when no --data-dir or env
// override is given: XDG data home, then the system service dir, then a
// per-user location, then ./data as the last resort.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "streamd")
	}
	if isDir("/var/lib") {
		return "/var/lib/streamd"
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if isDir(filepath.Join(home, "Library")) {
		return filepath.Join(home, "Library", "Application Support", "Streamd")
	}
	if isDir(filepath.Join(home, "AppData")) {
		return filepath.Join(home, "AppData", "Local", "Streamd")
	}
	return filepath.Join(home, ".streamd")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
