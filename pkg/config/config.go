/*
Package config manages TOML config for snipserve services.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sneap/snipserve/internal/utils"
)

// Config holds the entire config structure
type Config struct {
	Server ServerConfig `toml:"server"`
	Search SearchConfig `toml:"search"`
	Cache  CacheConfig  `toml:"cache"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxLimit  int `toml:"max_limit"`
	MinPrefix int `toml:"min_prefix"`
	MaxPrefix int `toml:"max_prefix"`
}

// SearchConfig holds search pipeline options.
type SearchConfig struct {
	FuzzyMaxDistance int `toml:"fuzzy_max_distance"`
	DebounceMs       int `toml:"debounce_ms"`
	TimeoutMs        int `toml:"timeout_ms"`
	RefreshAttempts  int `toml:"refresh_attempts"`
}

// CacheConfig bounds the client's two cache tiers.
type CacheConfig struct {
	MemoryLimit  int `toml:"memory_limit"`
	StorageLimit int `toml:"storage_limit"`
	TTLMins      int `toml:"ttl_mins"`
}

// TTL returns the cache TTL as a duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMins) * time.Minute
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/snipserve
// 2. ~/Library/Application Support/snipserve (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("home directory lookup failed: %v", err)
		return utils.GetExecutableDir()
	}

	candidates := []string{
		filepath.Join(homeDir, ".config", "snipserve"),
		// macOS convention, tried second so ~/.config wins when both work
		filepath.Join(homeDir, "Library", "Application Support", "snipserve"),
	}
	for _, dir := range candidates {
		if utils.CheckDirStatus(dir).Writable {
			return dir, nil
		}
	}

	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("executable directory lookup failed: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxLimit:  64,
			MinPrefix: 1,
			MaxPrefix: 60,
		},
		Search: SearchConfig{
			FuzzyMaxDistance: 2,
			DebounceMs:       300,
			TimeoutMs:        1000,
			RefreshAttempts:  3,
		},
		Cache: CacheConfig{
			MemoryLimit:  100,
			StorageLimit: 5000,
			TTLMins:      5,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("cannot create config directory %s, using built-in defaults: %v", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("cannot write default config to %s, using built-in defaults: %v", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("wrote default config to %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("cannot load config from %s, using built-in defaults: %v", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse salvages whatever valid sections a damaged file still has
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("no salvageable sections in %s, using all defaults: %v", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "search"); ok {
		extractSearchConfig(section, &config.Search)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cache"); ok {
		extractCacheConfig(section, &config.Cache)
	}
	return config, nil
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "min_prefix"); ok {
		server.MinPrefix = val
	}
	if val, ok := utils.ExtractInt64(data, "max_prefix"); ok {
		server.MaxPrefix = val
	}
}

func extractSearchConfig(data map[string]any, search *SearchConfig) {
	if val, ok := utils.ExtractInt64(data, "fuzzy_max_distance"); ok {
		search.FuzzyMaxDistance = val
	}
	if val, ok := utils.ExtractInt64(data, "debounce_ms"); ok {
		search.DebounceMs = val
	}
	if val, ok := utils.ExtractInt64(data, "timeout_ms"); ok {
		search.TimeoutMs = val
	}
	if val, ok := utils.ExtractInt64(data, "refresh_attempts"); ok {
		search.RefreshAttempts = val
	}
}

func extractCacheConfig(data map[string]any, cache *CacheConfig) {
	if val, ok := utils.ExtractInt64(data, "memory_limit"); ok {
		cache.MemoryLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "storage_limit"); ok {
		cache.StorageLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "ttl_mins"); ok {
		cache.TTLMins = val
	}
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// Update changes the server config values and saves to file
func (c *Config) Update(configPath string, maxLimit, minPrefix, maxPrefix *int) error {
	server := &c.Server
	if maxLimit != nil {
		server.MaxLimit = *maxLimit
	}
	if minPrefix != nil {
		server.MinPrefix = *minPrefix
	}
	if maxPrefix != nil {
		server.MaxPrefix = *maxPrefix
	}
	return SaveConfig(c, configPath)
}
