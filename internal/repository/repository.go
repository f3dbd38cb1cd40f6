// Package repository holds the storage backends for holdings snapshots and trust scores.
package repository

import (
	"os"
	"path/filepath"

	"holdings_tracker/internal/entity"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cloneSnapshot returns a copy whose holdings slice is not shared with the caller.
func cloneSnapshot(s *entity.Snapshot) *entity.Snapshot {
	if s == nil {
		return nil
	}
	out := &entity.Snapshot{LastUpdated: s.LastUpdated}
	if s.Holdings != nil {
		out.Holdings = make([]entity.TokenHolding, len(s.Holdings))
		copy(out.Holdings, s.Holdings)
	}
	return out
}

// writeFileAtomic writes data next to path and renames it into place, creating parent directories.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
