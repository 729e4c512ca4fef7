package utils

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
)

// PathResolver provides robust path resolution for the snipserve binary
type PathResolver struct {
	executablePath string
	executableDir  string
	homeDir        string
	configDir      string
}

// NewPathResolver locates the running binary and the platform config dir.
func NewPathResolver() (*PathResolver, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	// Editor extensions often install the binary behind a symlink
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("home directory lookup failed, falling back to /tmp: %v", err)
		homeDir = "/tmp"
	}

	pr := &PathResolver{
		executablePath: execPath,
		executableDir:  filepath.Dir(execPath),
		homeDir:        homeDir,
		configDir:      getConfigDir(homeDir),
	}

	log.Debugf("path resolver ready: exec=%s dir=%s config=%s",
		pr.executablePath, pr.executableDir, pr.configDir)

	return pr, nil
}

// getConfigDir picks the per-platform config directory.
func getConfigDir(homeDir string) string {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "snipserve")
		}
		return filepath.Join(homeDir, ".config", "snipserve")
	case "darwin":
		// ~/.config over Application Support: editor tooling expects it
		return filepath.Join(homeDir, ".config", "snipserve")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "snipserve")
		}
		return filepath.Join(homeDir, "AppData", "Roaming", "snipserve")
	default:
		return filepath.Join(homeDir, ".snipserve")
	}
}

// GetDatabasePath resolves the SQLite database location. Absolute paths
// win outright; relative ones are tried against the executable dir and
// the working dir; fresh installs land in the config dir.
func (pr *PathResolver) GetDatabasePath(userSpecifiedPath string) (string, error) {
	if filepath.IsAbs(userSpecifiedPath) {
		return userSpecifiedPath, nil
	}

	var candidatePaths []string
	if userSpecifiedPath != "" {
		candidatePaths = append(candidatePaths, filepath.Join(pr.executableDir, userSpecifiedPath))
		if cwd, err := os.Getwd(); err == nil {
			candidatePaths = append(candidatePaths, filepath.Join(cwd, userSpecifiedPath))
		}
	}

	// Existing files win; a fresh install falls through to the config dir
	// where the store creates and seeds a new database.
	for _, path := range candidatePaths {
		if FileExists(path) {
			log.Debugf("Found existing database: %s", path)
			return path, nil
		}
		log.Debugf("Database candidate not found: %s", path)
	}

	name := userSpecifiedPath
	if name == "" {
		name = "snipserve.db"
	}
	if !pr.ensureConfigDir(pr.configDir) {
		return filepath.Join(pr.executableDir, filepath.Base(name)), nil
	}
	return filepath.Join(pr.configDir, filepath.Base(name)), nil
}

// GetCachePath returns the persistent cache file location for client use.
func (pr *PathResolver) GetCachePath(filename string) (string, error) {
	return pr.GetConfigPath(filename)
}

// GetConfigPath returns where filename should live, degrading through
// fallback directories when the config dir rejects writes.
func (pr *PathResolver) GetConfigPath(filename string) (string, error) {
	configPath := filepath.Join(pr.configDir, filename)
	if pr.ensureConfigDir(pr.configDir) {
		return configPath, nil
	}

	for _, dir := range []string{
		filepath.Join(pr.homeDir, ".snipserve"),
		filepath.Join(os.TempDir(), "snipserve"),
		pr.executableDir,
	} {
		if pr.ensureConfigDir(dir) {
			path := filepath.Join(dir, filename)
			log.Warnf("config dir unwritable, using %s", path)
			return path, nil
		}
	}

	tempPath := filepath.Join(os.TempDir(), filename)
	log.Warnf("no writable config location, using %s", tempPath)
	return tempPath, nil
}

// ensureConfigDir reports whether dir exists (creating it when missing)
// and accepts writes.
func (pr *PathResolver) ensureConfigDir(dir string) bool {
	return CheckDirStatus(dir).Writable
}

// GetExecutableDir returns the directory holding the resolved binary.
func (pr *PathResolver) GetExecutableDir() string {
	return pr.executableDir
}

// GetConfigDir returns the resolved config directory.
func (pr *PathResolver) GetConfigDir() string {
	return pr.configDir
}
