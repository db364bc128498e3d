//go:build !unix

package mmfile

import (
	"fmt"
	"os"
)

// Map reads the entire file when mmap is not available.
func Map(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	return data, func() error { return nil }, nil
}

// Region is a heap buffer written to its file on Sync.
type Region struct {
	data []byte
	path string
}

// Create creates (or truncates) path and returns a size-byte region for it.
func Create(path string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid region size %d", size)
	}
	r := &Region{data: make([]byte, size), path: path}
	if err := r.Sync(); err != nil {
		return nil, err
	}
	return r, nil
}

// Bytes returns the region memory.
func (r *Region) Bytes() []byte { return r.data }

// Sync writes the region to its file.
func (r *Region) Sync() error {
	if r.data == nil {
		return nil
	}
	return os.WriteFile(r.path, r.data, 0o644)
}

// Close writes the region out. It is safe to call twice.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := r.Sync()
	r.data = nil
	return err
}
