package storage

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// KeyConfig holds configuration for image key generation.
type KeyConfig struct {
	// Prefix is the directory every key starts with.
	// Default: "uploads/recipe"
	Prefix string

	// ShardLevels is the number of directory levels for sharding.
	// Default: 0 (no sharding)
	ShardLevels int

	// ShardWidth is the number of characters per shard level.
	// Default: 2 (e.g., ab, cd)
	ShardWidth int
}

// DefaultKeyConfig returns the default key configuration.
func DefaultKeyConfig() KeyConfig {
	return KeyConfig{
		Prefix:     "uploads/recipe",
		ShardWidth: 2,
	}
}

var extPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// ImageKey generates a fresh key for an image with extension ext.
// The file name is a random UUID, so uploaded names never collide.
//
// Example with 2 shard levels:
//
//	ext: "png"
//	result: "uploads/recipe/3f/2a/3f2a9c1e-....png"
func ImageKey(cfg KeyConfig, ext string) string {
	id := uuid.NewString()
	hex := strings.ReplaceAll(id, "-", "")

	width := cfg.ShardWidth
	if width <= 0 {
		width = 2
	}

	components := make([]string, 0, cfg.ShardLevels+2)
	components = append(components, cfg.Prefix)
	for i := 0; i < cfg.ShardLevels && (i+1)*width <= len(hex); i++ {
		components = append(components, hex[i*width:(i+1)*width])
	}

	name := id
	if ext = NormalizeExt(ext); ext != "" {
		name += "." + ext
	}
	components = append(components, name)

	return path.Join(components...)
}

// NormalizeExt lowercases ext and strips a leading dot. Extensions that are
// not short alphanumeric strings are dropped.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// ValidateKey rejects keys that are empty, absolute or contain "..".
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return ErrInvalidKey
		}
	}
	return nil
}

// JoinURL joins a public base URL and a key.
func JoinURL(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}
