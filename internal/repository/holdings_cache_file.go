package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"
)

var _ port.HoldingsCache = (*FileHoldingsCache)(nil)

// FileHoldingsCache stores the snapshot as a JSON document on local disk.
type FileHoldingsCache struct {
	path string
	mu   sync.RWMutex
}

func NewFileHoldingsCache(path string) *FileHoldingsCache {
	return &FileHoldingsCache{path: path}
}

func (c *FileHoldingsCache) Load(_ context.Context) (*entity.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", entity.ErrCacheUnavailable, c.path, err)
	}

	var snapshot entity.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", entity.ErrCacheUnavailable, c.path, err)
	}
	return &snapshot, nil
}

func (c *FileHoldingsCache) Store(_ context.Context, snapshot *entity.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := writeFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", entity.ErrCacheUnavailable, c.path, err)
	}
	return nil
}

// Ping fails when an existing cache file cannot be read.
func (c *FileHoldingsCache) Ping(context.Context) error {
	_, err := os.Stat(c.path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %v", entity.ErrCacheUnavailable, err)
}
