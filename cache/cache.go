package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

const cacheRoot = "cache"

// GetCachePath returns the cache file path for a rendered post page.
func GetCachePath(postID string) string {
	hash := generateHash(postID)
	shortHash := hash[:16]
	return filepath.Join(cacheRoot, "posts", fmt.Sprintf("%s_%s.html", postID, shortHash))
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	hash := xxhash.Sum64String(s)
	return fmt.Sprintf("%016x", hash)
}

func ensureCacheDir() error {
	return os.MkdirAll(filepath.Join(cacheRoot, "posts"), 0755)
}

// WriteCache writes rendered HTML to the cache file for a post.
func WriteCache(postID, html string) error {
	if err := ensureCacheDir(); err != nil {
		return err
	}
	return os.WriteFile(GetCachePath(postID), []byte(html), 0644)
}

// ReadCache reads cached HTML for a post if it exists and is not expired.
func ReadCache(postID string, maxAge time.Duration) (string, bool) {
	cachePath := GetCachePath(postID)

	info, err := os.Stat(cachePath)
	if err != nil {
		return "", false
	}

	if time.Since(info.ModTime()) > maxAge {
		return "", false
	}

	content, err := os.ReadFile(cachePath)
	if err != nil {
		return "", false
	}

	return string(content), true
}

// ClearCache removes the cache file for one post. Missing files are fine.
func ClearCache(postID string) error {
	err := os.Remove(GetCachePath(postID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearOldCache removes cache files older than the specified duration.
func ClearOldCache(maxAge time.Duration) error {
	return filepath.Walk(cacheRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if info.IsDir() {
			return nil
		}

		if !strings.HasSuffix(path, ".html") {
			return nil
		}

		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}

		return nil
	})
}
