package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CacheFile is the per-project cache written under the build directory.
const CacheFile = "cache.yaml"

// BuildDir returns the build output directory of a project root.
func BuildDir(root string) string {
	return filepath.Join(root, "build")
}

// LoadCache reads build/cache.yaml. A missing or unreadable cache yields an
// empty PortCache; a malformed one is reported so the caller can warn.
func LoadCache(root string) (*PortCache, error) {
	raw, err := os.ReadFile(filepath.Join(BuildDir(root), CacheFile))
	if err != nil {
		return &PortCache{}, nil
	}

	var cache PortCache
	if err := yaml.Unmarshal(raw, &cache); err != nil {
		return &PortCache{}, fmt.Errorf("failed to load %s: %w", CacheFile, err)
	}
	return &cache, nil
}

// SaveCache writes cache to build/cache.yaml, creating the build directory if needed.
func SaveCache(root string, cache *PortCache) error {
	dir := BuildDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}

	body, err := yaml.Marshal(cache)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", CacheFile, err)
	}

	header := "# Lumos Cache - Non-persistent project settings\n" +
		"# This file is auto-generated and not meant to be version controlled\n\n"
	if err := os.WriteFile(filepath.Join(dir, CacheFile), append([]byte(header), body...), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", CacheFile, err)
	}
	return nil
}
