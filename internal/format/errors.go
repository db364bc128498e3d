package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrBadHeader indicates a no-loader ucode header whose word count does not
	// match its declared number of applications.
	ErrBadHeader = errors.New("format: malformed ucode header")
)
