//go:build unix

package mmfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map maps the file at path read-only and returns its contents.
func Map(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close() // mapping keeps pages alive

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := info.Size()
	if size == 0 {
		return []byte{}, func() error { return nil }, nil
	}
	if size > int64(^uint(0)>>1) {
		return nil, nil, fmt.Errorf("mmfile: file too large to map (%d bytes)", size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmfile: map %s: %w", path, err)
	}
	return data, unmapper(data), nil
}

func unmapper(data []byte) func() error {
	return func() error {
		err := unix.Munmap(data)
		if errors.Is(err, unix.EINVAL) {
			// double unmap
			return nil
		}
		return err
	}
}

// Region is a writable shared mapping of a file.
type Region struct {
	data  []byte
	f     *os.File
	unmap func() error
}

// Create creates (or truncates) path to size bytes and maps it read-write.
func Create(path string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid region size %d", size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmfile: size %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmfile: map %s: %w", path, err)
	}
	return &Region{data: data, f: f, unmap: unmapper(data)}, nil
}

// Bytes returns the mapped memory.
func (r *Region) Bytes() []byte { return r.data }

// Sync flushes the mapping to the file.
func (r *Region) Sync() error {
	if r.data == nil {
		return nil
	}
	return unix.Msync(r.data, unix.MS_SYNC)
}

// Close flushes, unmaps and closes the file. It is safe to call twice.
func (r *Region) Close() error {
	if r.f == nil {
		return nil
	}
	errSync := r.Sync()
	errUnmap := r.unmap()
	errClose := r.f.Close()
	r.data, r.f = nil, nil
	return errors.Join(errSync, errUnmap, errClose)
}
