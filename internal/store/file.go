package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pt-planner/pkg"
)

// FileSnapshotter keeps the mapping as one JSON document on local disk.
type FileSnapshotter struct {
	Path string
}

// NewFileSnapshotter returns a snapshotter for the JSON file at path.
func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{Path: path}
}

// Load reads the file.  A missing file is ErrNoSnapshot and undecodable
// content is ErrCorrupt.
func (f *FileSnapshotter) Load(_ context.Context) (map[string]*pkg.Patient, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return decodeSnapshot(b)
}

// Save writes to a temp file next to Path and renames it into place so a
// crash never leaves a half-written document behind.
func (f *FileSnapshotter) Save(_ context.Context, patients map[string]*pkg.Patient) error {
	b, err := encodeSnapshot(patients)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func encodeSnapshot(patients map[string]*pkg.Patient) ([]byte, error) {
	if patients == nil {
		patients = map[string]*pkg.Patient{}
	}
	b, err := json.MarshalIndent(patients, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func decodeSnapshot(b []byte) (map[string]*pkg.Patient, error) {
	var patients map[string]*pkg.Patient
	if err := json.Unmarshal(b, &patients); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return patients, nil
}
