package utils

import (
	"os"

	"github.com/BurntSushi/toml"
)

// LoadTOMLFile decodes path into config. Callers fall back to
// ParseTOMLWithRecovery when the file is damaged.
func LoadTOMLFile(path string, config any) error {
	_, err := toml.DecodeFile(path, config)
	return err
}

// ParseTOMLWithRecovery re-reads a damaged TOML file into a raw map so the
// sections that did decode can still be salvaged.
func ParseTOMLWithRecovery(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := make(map[string]any)
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ExtractSection pulls one table out of raw decoded TOML.
func ExtractSection(data map[string]any, name string) (map[string]any, bool) {
	section, ok := data[name].(map[string]any)
	return section, ok
}

// ExtractInt64 reads an integer key from a raw TOML table. The decoder
// hands integers back as int64.
func ExtractInt64(data map[string]any, key string) (int, bool) {
	if v, ok := data[key].(int64); ok {
		return int(v), true
	}
	return 0, false
}
