package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/coregx/coap/message"
	"github.com/coregx/coap/pool"
	"github.com/coregx/coap/tcp"
)

// Server drives the TCP receive pipeline and outgoing-request bookkeeping
// described in the specification: it classifies inbound packets, answers
// signaling messages, routes requests to a Handler, and matches
// responses to transactions registered by MakeRequest.
type Server struct {
	transport Transport
	handler   Handler
	txns      *pool.TransactionMap
	log       *logrus.Entry

	mu           sync.Mutex
	remotes      map[string]net.Addr
	connIDs      map[string]string
	capabilities map[string]PeerCapabilities
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithTransactionMap overrides the default-sharded transaction map, e.g.
// to pick a shard count tuned to an expected connection count.
func WithTransactionMap(m *pool.TransactionMap) Option {
	return func(s *Server) { s.txns = m }
}

// WithLogger overrides the logrus entry used for dispatch diagnostics.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) { s.log = log }
}

// New builds a Server over transport, routing requests to handler.
func New(transport Transport, handler Handler, opts ...Option) *Server {
	s := &Server{
		transport:    transport,
		handler:      handler,
		txns:         pool.NewTransactionMap(),
		log:          logrus.NewEntry(logrus.StandardLogger()),
		remotes:      make(map[string]net.Addr),
		connIDs:      make(map[string]string),
		capabilities: make(map[string]PeerCapabilities),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transactions returns the server's transaction map, for tests and
// external timeout schedulers that need to fail an expired transaction
// via Take.
func (s *Server) Transactions() *pool.TransactionMap { return s.txns }

// OnAccept registers remote as a live connection, stamping it with a
// correlation ID used only in log fields — it never touches the wire.
// Callers invoke this once their transport accepts a new connection.
func (s *Server) OnAccept(remote net.Addr) {
	id := uuid.NewString()
	key := remote.String()

	s.mu.Lock()
	s.remotes[key] = remote
	s.connIDs[key] = id
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"remote": key, "conn_id": id}).Debug("connection accepted")
}

func (s *Server) entryFor(remote string) *logrus.Entry {
	s.mu.Lock()
	id := s.connIDs[remote]
	s.mu.Unlock()
	return s.log.WithFields(logrus.Fields{"remote": remote, "conn_id": id})
}

// Capabilities returns the PeerCapabilities recorded from remote's last
// 7.01 CSM signal, and false if no CSM has been received for it (in
// which case a caller should assume defaultPeerCapabilities).
func (s *Server) Capabilities(remote net.Addr) (PeerCapabilities, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	caps, ok := s.capabilities[remote.String()]
	return caps, ok
}

func (s *Server) capabilitiesFor(remote net.Addr) PeerCapabilities {
	if caps, ok := s.Capabilities(remote); ok {
		return caps
	}
	return defaultPeerCapabilities()
}

// HandleReceived decodes data as a TCP-framed packet from remote and
// dispatches it per the specification's four-way classification: ping,
// signal, request, or response. Format errors are logged and the packet
// is dropped — they never propagate to the caller as a fatal condition,
// since one malformed packet on a stream must not tear down dispatch of
// the packets around it.
func (s *Server) HandleReceived(remote net.Addr, data []byte) {
	log := s.entryFor(remote.String())

	pkt, err := tcp.Parse(data, remote)
	if err != nil {
		log.WithError(err).Warn("dropping malformed packet")
		return
	}

	switch {
	case pkt.IsEmpty():
		s.handlePing(remote, pkt, log)
	case pkt.Code.IsSignal():
		s.handleSignal(remote, pkt, log)
	case pkt.Code.Kind == message.CodeMethod:
		s.handleRequest(remote, pkt, log)
	default: // message.CodeResponse, non-signal
		s.handleResponse(remote, pkt, log)
	}
}

func (s *Server) handlePing(remote net.Addr, pkt message.Packet, log *logrus.Entry) {
	log.Debug("received ping, replying empty message")
	reply := message.Packet{Framing: message.FramingTCP, Token: pkt.Token, Code: message.EmptyCode()}
	s.send(remote, reply, log)
}

func (s *Server) handleSignal(remote net.Addr, pkt message.Packet, log *logrus.Entry) {
	switch pkt.Code {
	case message.SignalCSM:
		caps := capabilitiesFromCSM(pkt)
		s.mu.Lock()
		s.capabilities[remote.String()] = caps
		s.mu.Unlock()
		log.WithFields(logrus.Fields{"max_message_size": caps.MaxMessageSize, "block_wise": caps.BlockWiseTransfer}).Debug("peer CSM received")

	case message.SignalPing:
		log.Debug("received signal ping, replying pong")
		reply := message.Packet{Framing: message.FramingTCP, Token: pkt.Token, Code: message.SignalPong}
		s.send(remote, reply, log)

	case message.SignalPong:
		// A pong is the response half of a ping transaction we initiated;
		// it is matched exactly like any other response.
		s.handleResponse(remote, pkt, log)

	case message.SignalAbort:
		log.Warn("received abort, tearing down transactions")
		s.HandleDisconnected(remote)

	case message.SignalRelease:
		log.Info("received release, tearing down transactions")
		s.HandleDisconnected(remote)

	default:
		log.WithField("code", pkt.Code.String()).Info("ignoring unrecognized signal code")
	}
}

func (s *Server) handleRequest(remote net.Addr, pkt message.Packet, log *logrus.Entry) {
	if s.handler == nil {
		log.Error("no handler configured, synthesizing 5.00")
		s.send(remote, synthesizeError(pkt), log)
		return
	}

	resp := s.handler.Handle(pkt)
	if resp.Code.Kind != message.CodeResponse {
		log.Error("handler did not produce a response code, synthesizing 5.00")
		resp = synthesizeError(pkt)
	}
	resp.Framing = message.FramingTCP
	resp.Token = pkt.Token
	s.send(remote, resp, log)
}

func synthesizeError(req message.Packet) message.Packet {
	return message.Packet{
		Framing: message.FramingTCP,
		Token:   req.Token,
		Code:    message.InternalServerError,
	}
}

func (s *Server) handleResponse(remote net.Addr, pkt message.Packet, log *logrus.Entry) {
	id := pool.NewDelayedTransactionID(pkt.Token, remote.String())
	cb, ok := s.txns.Take(id)
	if !ok {
		log.WithField("token", fmt.Sprintf("%x", []byte(pkt.Token))).Info("response matched no pending transaction, dropping")
		return
	}
	if cb.OnResponse != nil {
		cb.OnResponse(pkt)
	}
}

func (s *Server) send(remote net.Addr, pkt message.Packet, log *logrus.Entry) {
	data, err := tcp.Serialize(pkt)
	if err != nil {
		log.WithError(err).Error("failed to serialize outgoing packet")
		return
	}
	if err := s.transport.Send(remote, data); err != nil {
		log.WithError(err).Warn("failed to send outgoing packet")
	}
}

// MakeRequest sends req to remote, registering cb as its transaction
// before the send is attempted so a fast response can never race ahead
// of the registration. req is capped to remote's recorded CSM
// capabilities: if it serializes larger than the peer's advertised max
// message size, it is either split into a first Block1 block (peer
// supports block-wise transfer) or rejected with ErrMessageTooLarge
// (peer does not) without ever reaching the transport; a rejected request
// is removed from the transaction map and cb.OnError receives the same
// error MakeRequest returns. On a successful send, cb.OnSent fires; on a
// failed send, the transaction is removed and cb.OnError fires with the
// transport's error — the response hooks are never invoked in that case.
func (s *Server) MakeRequest(remote net.Addr, req message.Packet, cb pool.ResponseCallback) error {
	req.Framing = message.FramingTCP
	id := pool.NewDelayedTransactionID(req.Token, remote.String())

	s.txns.Insert(id, cb)

	_, data, err := capToPeer(req, s.capabilitiesFor(remote))
	if err != nil {
		s.txns.Take(id)
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}

	if err := s.transport.Send(remote, data); err != nil {
		s.txns.Take(id)
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}

	if cb.OnSent != nil {
		cb.OnSent()
	}
	return nil
}

// HandleDisconnected fails every transaction pending for remote with
// ErrTransportClosed and forgets remote's tracked state. Callback
// invocations for the drained transactions are fanned out concurrently,
// since any one callback may block on slow consumer code and the
// specification only orders callbacks within a single transaction, never
// across transactions during a disconnect sweep.
func (s *Server) HandleDisconnected(remote net.Addr) {
	key := remote.String()

	s.mu.Lock()
	delete(s.remotes, key)
	delete(s.connIDs, key)
	delete(s.capabilities, key)
	s.mu.Unlock()

	drained := s.txns.DrainByRemote(key)
	if len(drained) == 0 {
		return
	}

	var g errgroup.Group
	for _, entry := range drained {
		entry := entry
		g.Go(func() error {
			if entry.Callback.OnError != nil {
				entry.Callback.OnError(ErrTransportClosed)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Shutdown tears down every remote the server has accepted, draining and
// failing their transactions.
func (s *Server) Shutdown() {
	s.mu.Lock()
	remotes := make([]net.Addr, 0, len(s.remotes))
	for _, r := range s.remotes {
		remotes = append(remotes, r)
	}
	s.mu.Unlock()

	for _, r := range remotes {
		s.HandleDisconnected(r)
	}
}
