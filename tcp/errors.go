// Package tcp implements the draft-ietf-core-coap-tcp-tls length-prefixed
// framing for CoAP packets: no version, message type, or message id (the
// transport is already reliable and ordered), a variable-width length
// field, then code, token, options, and optional payload.
package tcp

import "errors"

// ErrInsufficientData is returned by DecodeIfBuffered when the supplied
// buffer does not yet hold a complete packet. The buffer is left
// untouched on this error — nothing was consumed — so the caller simply
// accumulates more bytes and retries. It wraps message.ErrShortRead at
// the call site via fmt.Errorf so callers can match on either sentinel.
var ErrInsufficientData = errors.New("tcp: insufficient data buffered")

// ErrEndOfStream indicates the underlying stream was closed before a
// complete packet could be assembled. The core never raises this itself
// (it operates on buffers, not live sockets); the transport layer raises
// it when a read returns io.EOF with a permanently-short tail buffered.
var ErrEndOfStream = errors.New("tcp: end of stream")
