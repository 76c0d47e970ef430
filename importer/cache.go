package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// cacheFileName is the on-disk artifact holding the flat list of
// directory-side principal identifiers. There is no TTL; the file stays
// authoritative until explicitly invalidated.
const cacheFileName = "ldapsync_userlist.json"

func cachePath(dir string) string {
	return filepath.Join(dir, cacheFileName)
}

// WriteUserListCache replaces the cache artifact with the given listing.
func WriteUserListCache(dir string, userlist []string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory failed: %w", err)
	}
	data, err := json.Marshal(userlist)
	if err != nil {
		return "", fmt.Errorf("encoding user list failed: %w", err)
	}
	path := cachePath(dir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing user list cache failed: %w", err)
	}
	return path, nil
}

// ReadUserListCache loads the cached listing. The second return is false
// when no cache artifact exists.
func ReadUserListCache(dir string) ([]string, bool, error) {
	data, err := os.ReadFile(cachePath(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading user list cache failed: %w", err)
	}
	var userlist []string
	if err := json.Unmarshal(data, &userlist); err != nil {
		return nil, false, fmt.Errorf("decoding user list cache failed: %w", err)
	}
	return userlist, true, nil
}

// InvalidateUserListCache deletes the cache artifact if present.
func InvalidateUserListCache(dir string) error {
	err := os.Remove(cachePath(dir))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing user list cache failed: %w", err)
	}
	return nil
}
