package dedup

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goexcerpt/internal/cache"
)

// FileStore keeps the set in memory and rewrites a JSON array file after
// every Add.
type FileStore struct {
	path   string
	strict bool

	mu  sync.Mutex
	set map[string]struct{}
}

// OpenFile loads path. A missing or unreadable file yields an empty set and
// a warning; the store still works and creates the file on the first Add.
func OpenFile(path string, strictPerms bool) *FileStore {
	s := &FileStore{path: path, strict: strictPerms, set: map[string]struct{}{}}
	ids, err := load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug().Str("path", path).Msg("dedup file not found; starting empty")
	case err != nil:
		log.Warn().Err(err).Str("path", path).Msg("dedup file unreadable; starting empty")
	default:
		for _, id := range ids {
			s.set[id] = struct{}{}
		}
		log.Debug().Str("path", path).Int("count", len(s.set)).Msg("dedup loaded")
	}
	return s
}

// load accepts a JSON array of strings or a newline separated list.
func load(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] == '[' {
		var ids []string
		if err := json.Unmarshal(b, &ids); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return ids, nil
	}
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, sc.Err()
}

func (s *FileStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[id]
	return ok
}

// Add persists the whole set under the lock so concurrent adds never
// interleave partial files.
func (s *FileStore) Add(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[id]; ok {
		return nil
	}
	s.set[id] = struct{}{}
	return s.persistLocked()
}

func (s *FileStore) persistLocked() error {
	ids := make([]string, 0, len(s.set))
	for id := range s.set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	b, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	if err := cache.WriteFileAtomic(s.path, b, s.strict); err != nil {
		return fmt.Errorf("persist dedup: %w", err)
	}
	return nil
}

func (s *FileStore) Snapshot() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.set))
	for id := range s.set {
		out[id] = struct{}{}
	}
	return out
}

func (s *FileStore) Close() error { return nil }
