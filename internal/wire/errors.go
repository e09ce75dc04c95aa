// Package wire implements the primitive big-endian byte I/O shared by the
// message, udp, and tcp packages. It is an implementation detail of the
// wire formats, not a public API.
package wire

import "errors"

// ErrShortRead indicates the underlying slice has fewer bytes available
// than requested. It is distinct from io.EOF: callers decide whether a
// short read means "truncated packet" (full-buffer parse) or "wait for
// more bytes" (streaming peek-decode).
var ErrShortRead = errors.New("wire: short read")
