package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// perms returns directory and file modes; strict mode keeps entries private.
func perms(strict bool) (os.FileMode, os.FileMode) {
	if strict {
		return 0o700, 0o600
	}
	return 0o755, 0o644
}

func ensureDir(dir string, strict bool) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("cache dir not configured")
	}
	dirMode, _ := perms(strict)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}
	if strict {
		if info, err := os.Stat(dir); err == nil && info.Mode().Perm() != 0o700 {
			_ = os.Chmod(dir, 0o700)
		}
	}
	return nil
}

// writeAtomic writes data to a temp file beside path and renames it into
// place, so readers never observe a partial entry.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Chmod(name, mode); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}

func digest(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\n\n")))
	return hex.EncodeToString(h[:])
}

// ClearDir removes the directory and all contents, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeOlderThan removes cache files whose modification time is older than
// maxAge. HTTP bodies go together with their metadata. It returns the number
// of entries removed.
func PurgeOlderThan(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".body") || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		if os.Remove(path) == nil {
			removed++
		}
		if strings.HasSuffix(path, ".meta.json") {
			_ = os.Remove(strings.TrimSuffix(path, ".meta.json") + ".body")
		}
		return nil
	})
	return removed, err
}

// WriteFileAtomic creates the parent directory if needed and replaces path
// with data in one rename. Used by the dedup and job files.
func WriteFileAtomic(path string, data []byte, strict bool) error {
	if err := ensureDir(filepath.Dir(path), strict); err != nil {
		return err
	}
	_, mode := perms(strict)
	return writeAtomic(path, data, mode)
}
