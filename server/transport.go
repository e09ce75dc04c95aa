// Package server implements the TCP receive pipeline: classifying an
// inbound packet into ping/signal/request/response, answering signals,
// routing requests to a handler, and matching responses to pending
// transactions. Concrete transport bindings and resource-routing trees
// are external collaborators — this package only consumes the Transport
// and Handler contracts below.
package server

import (
	"net"

	"github.com/coregx/coap/message"
)

// Transport is the abstraction the dispatcher sends serialized packets
// through. Send is the local realization of the specification's
// "send(bytes, remote) -> future<success|error>": a concrete transport
// may complete it synchronously or block internally on I/O, but from the
// dispatcher's point of view it either returns nil once bytes are
// handed off successfully, or a non-nil error.
type Transport interface {
	Send(remote net.Addr, data []byte) error
}

// Handler produces a response packet for a request packet. It MUST
// return a response whose Code is a response code and whose Token
// equals the request's token, per the specification's handler contract.
type Handler interface {
	Handle(req message.Packet) message.Packet
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(req message.Packet) message.Packet

// Handle calls f.
func (f HandlerFunc) Handle(req message.Packet) message.Packet { return f(req) }
