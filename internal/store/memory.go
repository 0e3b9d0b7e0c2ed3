package store

import (
	"context"
	"sync"

	"pt-planner/pkg"
)

// MemorySnapshotter keeps the last saved mapping in process.  It backs the
// "memory" store backend and tests.
type MemorySnapshotter struct {
	mu    sync.Mutex
	data  []byte
	saves int
	// Err, when set, is returned by Save.
	Err error
}

// Load decodes the last saved mapping, or returns ErrNoSnapshot.
func (m *MemorySnapshotter) Load(_ context.Context) (map[string]*pkg.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNoSnapshot
	}
	return decodeSnapshot(m.data)
}

// Save records patients, or returns Err when it is set.
func (m *MemorySnapshotter) Save(_ context.Context, patients map[string]*pkg.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	b, err := encodeSnapshot(patients)
	if err != nil {
		return err
	}
	m.data = b
	m.saves++
	return nil
}

// Saves reports how many snapshots were written.
func (m *MemorySnapshotter) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
