package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// HTTPEntry captures enough metadata to revalidate a cached body with a
// conditional request.
type HTTPEntry struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	SavedAt      time.Time `json:"saved_at"`
}

// HTTPCache stores fetched sources on disk under <Dir>/http as
// <sha256(url)>.meta.json and <sha256(url)>.body. No eviction beyond
// PurgeOlderThan.
type HTTPCache struct {
	Dir         string
	StrictPerms bool
}

func (c *HTTPCache) root() string { return filepath.Join(c.Dir, "http") }

func (c *HTTPCache) paths(url string) (meta, body string) {
	k := digest(url)
	return filepath.Join(c.root(), k+".meta.json"), filepath.Join(c.root(), k+".body")
}

// LoadMeta returns entry metadata if present.
func (c *HTTPCache) LoadMeta(_ context.Context, url string) (*HTTPEntry, error) {
	if err := ensureDir(c.root(), c.StrictPerms); err != nil {
		return nil, err
	}
	metaPath, _ := c.paths(url)
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	var e HTTPEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// LoadBody returns the cached body if present.
func (c *HTTPCache) LoadBody(_ context.Context, url string) ([]byte, error) {
	_, bodyPath := c.paths(url)
	return os.ReadFile(bodyPath)
}

// Save stores the body first and the metadata last, so a metadata file always
// points at a complete body.
func (c *HTTPCache) Save(_ context.Context, url, contentType, etag, lastModified string, body []byte) error {
	if err := ensureDir(c.root(), c.StrictPerms); err != nil {
		return err
	}
	_, fileMode := perms(c.StrictPerms)
	metaPath, bodyPath := c.paths(url)
	if err := writeAtomic(bodyPath, body, fileMode); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	meta, err := json.Marshal(HTTPEntry{
		URL:          url,
		ContentType:  contentType,
		ETag:         etag,
		LastModified: lastModified,
		SavedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	return writeAtomic(metaPath, meta, fileMode)
}
