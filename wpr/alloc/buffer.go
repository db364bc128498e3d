package alloc

import (
	"fmt"
	"io"
	"math"

	"github.com/joshuapare/wprkit/internal/buf"
	"github.com/joshuapare/wprkit/internal/mmfile"
	"github.com/joshuapare/wprkit/pkg/types"
)

// Buffer is the destination of a manifest. Writes outside [0, Size()) fail.
type Buffer interface {
	io.WriterAt
	// Bytes returns the buffer contents. The slice aliases the buffer.
	Bytes() []byte
	// Size returns the buffer length.
	Size() uint32
	// Close releases the buffer. Bytes must not be used afterwards.
	Close() error
}

// BlobAllocator hands out destination buffers. Returned buffers are
// zero-filled. Errors wrap types.ErrOutOfMemory on exhaustion.
type BlobAllocator interface {
	Alloc(size uint32) (Buffer, error)
}

// sliceBuffer implements Buffer over a byte slice with an optional closer.
type sliceBuffer struct {
	b     []byte
	close func() error
}

func (s *sliceBuffer) WriteAt(p []byte, off int64) (int, error) {
	if s.b == nil {
		return 0, ErrClosed
	}
	if off > math.MaxInt32 {
		return 0, fmt.Errorf("alloc: write offset %#x beyond 32-bit range", off)
	}
	if _, err := buf.CheckRegion(len(s.b), int(off), len(p)); err != nil {
		return 0, fmt.Errorf("alloc: write %d bytes at %#x: %w", len(p), off, err)
	}
	return copy(s.b[off:], p), nil
}

func (s *sliceBuffer) Bytes() []byte { return s.b }

func (s *sliceBuffer) Size() uint32 { return uint32(len(s.b)) }

func (s *sliceBuffer) Close() error {
	if s.b == nil {
		return nil
	}
	s.b = nil
	if s.close != nil {
		return s.close()
	}
	return nil
}

// Mem allocates buffers on the Go heap.
type Mem struct {
	// Limit caps a single buffer's size. Zero means no limit.
	Limit uint32

	allocs int
}

// Alloc implements BlobAllocator.
func (m *Mem) Alloc(size uint32) (Buffer, error) {
	if size == 0 {
		return nil, types.Wrap(types.ErrKindInvalidInput, "alloc: empty buffer", ErrBadSize)
	}
	if m.Limit > 0 && size > m.Limit {
		return nil, types.Wrap(types.ErrKindOutOfMemory,
			fmt.Sprintf("alloc: buffer of %d bytes exceeds limit %d", size, m.Limit), ErrLimit)
	}
	m.allocs++
	return &sliceBuffer{b: make([]byte, size)}, nil
}

// Allocs returns the number of buffers handed out.
func (m *Mem) Allocs() int { return m.allocs }

// Mapped allocates buffers backed by a shared mapping of Path. Each Alloc
// truncates the file to the requested size.
type Mapped struct {
	Path string
	// Limit caps a single buffer's size. Zero means no limit.
	Limit uint32
}

// Alloc implements BlobAllocator.
func (m *Mapped) Alloc(size uint32) (Buffer, error) {
	if size == 0 {
		return nil, types.Wrap(types.ErrKindInvalidInput, "alloc: empty buffer", ErrBadSize)
	}
	if m.Limit > 0 && size > m.Limit {
		return nil, types.Wrap(types.ErrKindOutOfMemory,
			fmt.Sprintf("alloc: buffer of %d bytes exceeds limit %d", size, m.Limit), ErrLimit)
	}
	r, err := mmfile.Create(m.Path, int(size))
	if err != nil {
		return nil, types.Wrap(types.ErrKindOutOfMemory, "alloc: map "+m.Path, err)
	}
	return &sliceBuffer{b: r.Bytes(), close: r.Close}, nil
}
