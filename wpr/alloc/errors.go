package alloc

import "errors"

var (
	// ErrLimit indicates a reservation or buffer would exceed the configured limit.
	ErrLimit = errors.New("alloc: limit exceeded")

	// ErrTooManyLive indicates the cap on live reservations was reached.
	ErrTooManyLive = errors.New("alloc: too many live reservations")

	// ErrBadSize indicates a zero or negative request.
	ErrBadSize = errors.New("alloc: invalid size")

	// ErrClosed indicates use of a buffer after Close.
	ErrClosed = errors.New("alloc: buffer closed")
)
