package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileCache keeps one file per key under dir. Each file records its own
// expiry.
type FileCache struct {
	dir string
	now func() time.Time
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

func (c *FileCache) path(key string) string {
	name := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(key)
	return filepath.Join(c.dir, name+".json.lz4")
}

func (c *FileCache) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(c.path(key))
	if os.IsNotExist(err) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var entry fileEntry
	if err := Decode(data, &entry); err != nil {
		return nil, err
	}
	if !entry.ExpiresAt.IsZero() && c.now().After(entry.ExpiresAt) {
		return nil, ErrMiss
	}
	return entry.Payload, nil
}

func (c *FileCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := fileEntry{Payload: value}
	if ttl > 0 {
		entry.ExpiresAt = c.now().Add(ttl)
	}

	data, err := Encode(entry)
	if err != nil {
		return err
	}

	// Write then rename so readers never see a partial file.
	tmp, err := os.CreateTemp(c.dir, "entry-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	return os.Rename(tmp.Name(), c.path(key))
}

func (c *FileCache) Name() string { return "file" }

func (c *FileCache) Close() error { return nil }

type fileEntry struct {
	ExpiresAt time.Time `json:"expires_at"`
	Payload   []byte    `json:"payload"`
}
