package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// LLMCache stores oracle responses under <Dir>/oracle keyed by KeyFrom.
type LLMCache struct {
	Dir string
	// StrictPerms enforces 0700 directories and 0600 files.
	StrictPerms bool
}

// KeyFrom builds a cache key from the model name and the full prompt.
func KeyFrom(model string, prompt string) string {
	return digest(model, prompt)
}

func (c *LLMCache) pathFor(key string) string {
	return filepath.Join(c.Dir, "oracle", key+".json")
}

// Get returns cached bytes if present. A miss is not an error.
func (c *LLMCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c == nil || c.Dir == "" {
		return nil, false, nil
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	// touch so age-based purging keeps hot entries
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes bytes to cache.
func (c *LLMCache) Save(_ context.Context, key string, data []byte) error {
	if c == nil || c.Dir == "" {
		return nil
	}
	p := c.pathFor(key)
	if err := ensureDir(filepath.Dir(p), c.StrictPerms); err != nil {
		return err
	}
	_, mode := perms(c.StrictPerms)
	return writeAtomic(p, data, mode)
}
