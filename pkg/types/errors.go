package types

import "errors"

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindUnknown         ErrKind = iota // not produced by wprkit
	ErrKindNotFound                       // required firmware missing
	ErrKindOutOfMemory                    // heap or blob buffer exhausted
	ErrKindInvalidInput                   // descriptor lacks the expected boot-strategy metadata
	ErrKindAddressOverflow                // offset or DMA address exceeds 32 bits
)

// String returns the lower-case name of the kind.
func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not found"
	case ErrKindOutOfMemory:
		return "out of memory"
	case ErrKindInvalidInput:
		return "invalid input"
	case ErrKindAddressOverflow:
		return "address overflow"
	default:
		return "unknown"
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so a wrapped detail error still
// compares equal to its category sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil {
		return false
	}
	return t.Kind == e.Kind && t.Msg == kindSentinelMsg(t.Kind)
}

// Sentinels returned (wrapped) by implementations.
var (
	// ErrNotFound indicates a required firmware image or signature is missing.
	ErrNotFound = &Error{Kind: ErrKindNotFound, Msg: kindSentinelMsg(ErrKindNotFound)}
	// ErrOutOfMemory indicates heap or destination-buffer exhaustion.
	ErrOutOfMemory = &Error{Kind: ErrKindOutOfMemory, Msg: kindSentinelMsg(ErrKindOutOfMemory)}
	// ErrInvalidInput indicates a record without the expected boot-strategy metadata.
	ErrInvalidInput = &Error{Kind: ErrKindInvalidInput, Msg: kindSentinelMsg(ErrKindInvalidInput)}
	// ErrAddressOverflow indicates a manifest too large for 32-bit addressing.
	ErrAddressOverflow = &Error{Kind: ErrKindAddressOverflow, Msg: kindSentinelMsg(ErrKindAddressOverflow)}
)

func kindSentinelMsg(k ErrKind) string {
	return "wpr: " + k.String()
}

// New returns an *Error of kind k carrying msg.
func New(k ErrKind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

// Wrap returns an *Error of kind k carrying msg and the cause err.
func Wrap(k ErrKind, msg string, err error) *Error {
	return &Error{Kind: k, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
