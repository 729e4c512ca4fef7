package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// DirStatus reports whether a directory exists and accepts writes.
type DirStatus struct {
	Exists   bool
	Writable bool
	Err      error
}

// FileExists reports whether path names an existing file.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates the directory, parents included, when missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// SaveTOMLFile encodes data as TOML at path, replacing any existing file.
func SaveTOMLFile(data any, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(data)
}

// GetAbsolutePath resolves path for display. A path that cannot be
// resolved comes back unchanged; an empty one reads "unknown".
func GetAbsolutePath(path string) string {
	if path == "" {
		return "unknown"
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// GetExecutableDir returns the directory holding the running binary.
func GetExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// CheckDirStatus creates dir when missing and probes write access with a
// throwaway file, since permission bits alone don't prove writability on
// every filesystem.
func CheckDirStatus(dir string) DirStatus {
	if _, err := os.Stat(dir); err != nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warnf("cannot create directory %s: %v", dir, err)
			return DirStatus{Err: err}
		}
	}
	return DirStatus{Exists: true, Writable: probeWrite(dir)}
}

func probeWrite(dir string) bool {
	f, err := os.CreateTemp(dir, ".snipserve-probe-*")
	if err != nil {
		log.Warnf("directory %s is not writable: %v", dir, err)
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
