package alloc

import (
	"fmt"
	"sync"

	"github.com/joshuapare/wprkit/pkg/types"
)

// Heap accounts host memory held while a manifest is prepared.
type Heap interface {
	// Reserve accounts n bytes. It fails with an error wrapping
	// types.ErrOutOfMemory when the heap is exhausted.
	Reserve(n int) error
	// Release returns n bytes previously reserved.
	Release(n int)
}

type unlimited struct{}

func (unlimited) Reserve(int) error { return nil }
func (unlimited) Release(int) {}

// Unlimited never fails and keeps no statistics.
var Unlimited Heap = unlimited{}

// Accounting is a Heap that tracks usage. The zero value is unlimited.
type Accounting struct {
	// Limit caps the bytes in use. Zero means no limit.
	Limit int
	// MaxLive caps the number of live reservations. Zero means no cap.
	MaxLive int

	mu    sync.Mutex
	inUse int
	live  int
	peak  int
	total int
}

// Reserve implements Heap.
func (a *Accounting) Reserve(n int) error {
	if n < 0 {
		return types.Wrap(types.ErrKindInvalidInput, fmt.Sprintf("alloc: reserve %d", n), ErrBadSize)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.MaxLive > 0 && a.live >= a.MaxLive {
		return types.Wrap(types.ErrKindOutOfMemory,
			fmt.Sprintf("alloc: %d live reservations", a.live), ErrTooManyLive)
	}
	if a.Limit > 0 && a.inUse+n > a.Limit {
		return types.Wrap(types.ErrKindOutOfMemory,
			fmt.Sprintf("alloc: reserve %d with %d of %d in use", n, a.inUse, a.Limit), ErrLimit)
	}
	a.inUse += n
	a.live++
	a.total++
	a.peak = max(a.peak, a.inUse)
	return nil
}

// Release implements Heap. Releasing more than is in use panics, since it
// means a record was released twice.
func (a *Accounting) Release(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > a.inUse || a.live == 0 {
		panic(fmt.Sprintf("alloc: release of %d bytes with %d in use", n, a.inUse))
	}
	a.inUse -= n
	a.live--
}

// InUse returns the bytes currently reserved.
func (a *Accounting) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Live returns the number of outstanding reservations.
func (a *Accounting) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// Peak returns the highest InUse seen.
func (a *Accounting) Peak() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peak
}

// Reservations returns how many reservations succeeded in total.
func (a *Accounting) Reservations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}
