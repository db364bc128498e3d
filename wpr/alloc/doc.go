// Package alloc provides the memory the manifest builder draws on.
//
// # Host heap
//
// Every record the builder keeps while preparing a manifest is accounted
// against a Heap. Accounting enforces an optional byte limit and an optional
// cap on live reservations, and reports what is still in use, which is how
// callers check that a build released everything it reserved:
//
//	heap := &alloc.Accounting{Limit: 1 << 20}
//	b := wpr.New(cfg, wpr.Options{Heap: heap})
//	m, err := b.Prepare(ctx, nil)
//	// heap.InUse() == 0 whether or not err is nil
//
// Unlimited is a Heap that never fails and tracks nothing.
//
// # Destination buffers
//
// A BlobAllocator hands out the destination Buffer the manifest is written
// into. Mem allocates on the Go heap with an optional size limit. Mapped
// backs the buffer by a shared file mapping so the finished manifest lands
// on disk without a copy.
//
// # Thread Safety
//
// Accounting is safe for concurrent use. Buffers are not.
package alloc
