// Package storage persists the curated snapshot to the local filesystem.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inbix/curator/internal/curator"
)

// Config captures the parameters for the snapshot store.
type Config struct {
	// DataDir is the directory holding the snapshot file.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// Filename is the snapshot file name inside DataDir.
	Filename string `mapstructure:"filename" yaml:"filename"`
}

// SnapshotStore reads and writes the curated snapshot as a single JSON file.
// The write is atomic: a partially written file is never observable.
type SnapshotStore struct {
	path string
}

// New creates a filesystem-backed snapshot store, creating DataDir if needed.
func New(cfg Config) (*SnapshotStore, error) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if strings.TrimSpace(cfg.Filename) == "" {
		cfg.Filename = "curadoria.json"
	}

	info, err := os.Stat(cfg.DataDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat data directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.DataDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("data directory path is not a directory")
	}

	return &SnapshotStore{
		path: filepath.Join(cfg.DataDir, cfg.Filename),
	}, nil
}

// Path returns the snapshot file location.
func (s *SnapshotStore) Path() string { return s.path }

// Save writes the snapshot through a temp file and rename so readers only
// ever see a complete document.
func (s *SnapshotStore) Save(_ context.Context, snap curator.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads the latest snapshot. A missing file yields an empty snapshot,
// not an error; a fresh deployment has simply never run the pipeline.
func (s *SnapshotStore) Load(_ context.Context) (curator.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return curator.Snapshot{Items: []curator.Item{}}, nil
		}
		return curator.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap curator.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return curator.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Items == nil {
		snap.Items = []curator.Item{}
	}
	return snap, nil
}
