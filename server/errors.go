package server

import "errors"

// ErrTransportClosed is delivered to a transaction's callback when its
// remote disconnects (HandleDisconnected, or an ABORT/RELEASE signal). A
// failed send does not use it: the callback receives the transport's own
// error instead.
var ErrTransportClosed = errors.New("server: transport closed")

// ErrNoHandler names the "no handler configured" condition. The
// dispatcher does not return or propagate it: when no handler is
// configured it answers the peer with a synthesized 5.00 Internal Server
// Error instead.
var ErrNoHandler = errors.New("server: no handler configured")

// ErrMessageTooLarge is returned by MakeRequest when a request serializes
// larger than the peer's advertised CSM max message size and the peer's
// CSM did not indicate block-wise transfer support, leaving no way to
// deliver it.
var ErrMessageTooLarge = errors.New("server: request exceeds peer's max message size")
