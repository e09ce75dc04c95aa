// Package message defines the CoAP data model shared by the UDP and TCP
// framings: the Packet value type, the Code tagged union, the ordered
// Options container with its delta-based codec, and the BlockOption
// helper for RFC 7959 block-wise transfer.
//
// The codec in this package is pure and reentrant: it neither blocks nor
// shares mutable state, so it is safe to call concurrently from any
// number of goroutines. See internal/wire for the primitive byte I/O it
// is built on.
package message

import (
	"errors"
	"fmt"
)

// ErrShortRead signals that fewer bytes were available than a primitive
// read requested. It is a separate sentinel from internal/wire.ErrShortRead
// and does not wrap it; the codecs return this one in place of the wire error.
var ErrShortRead = errors.New("message: short read")

// Format errors — malformed bytes on the wire. The offending packet
// should be dropped and logged by the receive pipeline, never panicked on.
var (
	// ErrFormat is wrapped, together with a specific sentinel, by every
	// error built with formatErrorf: the option codec's reserved-nibble,
	// value-length and truncated-option errors, the payload-marker errors,
	// and Packet.Validate's token-length error. The udp/tcp version and TKL
	// checks and the option-order checks return their specific sentinel
	// without ErrFormat.
	ErrFormat = errors.New("message: format error")

	ErrBadVersion        = errors.New("message: unsupported version")
	ErrBadTokenLength    = errors.New("message: token length out of range")
	ErrReservedNibble    = errors.New("message: reserved option nibble")
	ErrMissingMarker     = errors.New("message: non-empty payload without marker")
	ErrOptionValueLength = errors.New("message: option value length out of range")
	ErrCodeConflict      = errors.New("message: code and method both set")
	ErrFramingMismatch   = errors.New("message: type/message-id presence does not match framing")
	ErrOptionOrder       = errors.New("message: options not in ascending order")
)

// formatErrorf wraps detail together with ErrFormat so callers can match
// either the specific cause or the general "format error" category with
// a single errors.Is check.
func formatErrorf(detail error, format string, args ...any) error {
	return fmt.Errorf(format+": %w: %w", append(args, detail, ErrFormat)...)
}
