package server_test

import (
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/coap/message"
	"github.com/coregx/coap/pool"
	"github.com/coregx/coap/server"
	"github.com/coregx/coap/tcp"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

// recordingTransport captures every Send call instead of touching a
// socket, so dispatch tests can assert on what the server would have
// written to the wire.
type recordingTransport struct {
	mu   sync.Mutex
	sent []message.Packet
	fail error
}

func (t *recordingTransport) Send(remote net.Addr, data []byte) error {
	if t.fail != nil {
		return t.fail
	}
	pkt, err := tcp.Parse(data, remote)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.sent = append(t.sent, pkt)
	t.mu.Unlock()
	return nil
}

func (t *recordingTransport) last() (message.Packet, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return message.Packet{}, false
	}
	return t.sent[len(t.sent)-1], true
}

func encode(t *testing.T, p message.Packet) []byte {
	t.Helper()
	data, err := tcp.Serialize(p)
	require.NoError(t, err)
	return data
}

func TestHandleReceivedPingRepliesEmpty(t *testing.T) {
	transport := &recordingTransport{}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	s.HandleReceived(remote, encode(t, message.Packet{Code: message.EmptyCode()}))

	got, ok := transport.last()
	require.True(t, ok, "expected a reply to the ping")
	assert.True(t, got.IsEmpty())
}

func TestHandleReceivedSignalPingRepliesPong(t *testing.T) {
	transport := &recordingTransport{}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	req := message.Packet{Code: message.SignalPing, Token: message.Token{0x42}}
	s.HandleReceived(remote, encode(t, req))

	got, ok := transport.last()
	require.True(t, ok)
	assert.Equal(t, message.SignalPong, got.Code)
	assert.Equal(t, message.Token{0x42}, got.Token)
}

func TestHandleReceivedRequestInvokesHandler(t *testing.T) {
	transport := &recordingTransport{}
	handler := server.HandlerFunc(func(req message.Packet) message.Packet {
		return message.Packet{Code: message.Content, Token: req.Token}
	})
	s := server.New(transport, handler)
	remote := fakeAddr("10.0.0.1:5683")

	req := message.Packet{Code: message.MethodCode(message.GET), Token: message.Token{0x01}}
	s.HandleReceived(remote, encode(t, req))

	got, ok := transport.last()
	require.True(t, ok)
	assert.Equal(t, message.Content, got.Code)
}

func TestHandleReceivedRequestWithNoHandlerRepliesInternalServerError(t *testing.T) {
	transport := &recordingTransport{}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	req := message.Packet{Code: message.MethodCode(message.GET)}
	s.HandleReceived(remote, encode(t, req))

	got, ok := transport.last()
	require.True(t, ok)
	assert.Equal(t, message.InternalServerError, got.Code)
}

func TestMakeRequestResponseCallback(t *testing.T) {
	transport := &recordingTransport{}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	done := make(chan message.Packet, 1)
	cb := pool.ResponseCallback{OnResponse: func(p message.Packet) { done <- p }}

	req := message.Packet{Code: message.MethodCode(message.GET), Token: message.Token{0x07}}
	require.NoError(t, s.MakeRequest(remote, req, cb))

	// Simulate the peer's response arriving over the same transport.
	resp := message.Packet{Code: message.Content, Token: message.Token{0x07}}
	s.HandleReceived(remote, encode(t, resp))

	select {
	case got := <-done:
		assert.Equal(t, message.Content, got.Code)
	default:
		t.Fatal("OnResponse callback was not invoked")
	}
}

func TestMakeRequestSendFailureInvokesOnError(t *testing.T) {
	transport := &recordingTransport{fail: errors.New("boom")}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	errCh := make(chan error, 1)
	cb := pool.ResponseCallback{OnError: func(err error) { errCh <- err }}

	req := message.Packet{Code: message.MethodCode(message.GET), Token: message.Token{0x09}}
	require.Error(t, s.MakeRequest(remote, req, cb))

	select {
	case gotErr := <-errCh:
		assert.Error(t, gotErr)
	default:
		t.Fatal("OnError callback was not invoked")
	}
	assert.Equal(t, 0, s.Transactions().Len(), "failed send must roll back the transaction")
}

func TestHandleDisconnectedDrainsTransactions(t *testing.T) {
	transport := &recordingTransport{}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	errCh := make(chan error, 1)
	cb := pool.ResponseCallback{OnError: func(err error) { errCh <- err }}
	req := message.Packet{Code: message.MethodCode(message.GET), Token: message.Token{0x0A}}
	require.NoError(t, s.MakeRequest(remote, req, cb))

	s.HandleDisconnected(remote)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, server.ErrTransportClosed)
	default:
		t.Fatal("disconnect should have failed the pending transaction")
	}
	assert.Equal(t, 0, s.Transactions().Len())
}

func TestHandleReceivedCSMRecordsPeerCapabilities(t *testing.T) {
	transport := &recordingTransport{}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	if _, ok := s.Capabilities(remote); ok {
		t.Fatal("Capabilities() found an entry before any CSM was received")
	}

	var opts message.Options
	opts.Add(2, []byte{0x01, 0x00}) // max-message-size: 256
	opts.Add(4, nil)                // block-wise-transfer present
	csm := message.Packet{Code: message.SignalCSM, Options: opts}
	s.HandleReceived(remote, encode(t, csm))

	caps, ok := s.Capabilities(remote)
	require.True(t, ok, "expected CSM to record peer capabilities")
	assert.Equal(t, uint32(256), caps.MaxMessageSize)
	assert.True(t, caps.BlockWiseTransfer)
}

func TestMakeRequestRejectsOversizedRequestWithoutBlockWiseSupport(t *testing.T) {
	transport := &recordingTransport{}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	var opts message.Options
	opts.Add(2, []byte{0x00, 0x20}) // max-message-size: 32, no block-wise option
	s.HandleReceived(remote, encode(t, message.Packet{Code: message.SignalCSM, Options: opts}))

	cb := pool.ResponseCallback{}
	req := message.Packet{
		Code:    message.MethodCode(message.POST),
		Token:   message.Token{0x0C},
		Payload: make([]byte, 200),
	}
	err := s.MakeRequest(remote, req, cb)
	require.Error(t, err)
	assert.ErrorIs(t, err, server.ErrMessageTooLarge)
	assert.Equal(t, 0, s.Transactions().Len(), "rejected request must not leave a dangling transaction")

	_, sent := transport.last()
	assert.False(t, sent, "oversized request must never reach the transport")
}

func TestMakeRequestCapsOversizedRequestToFirstBlockWhenPeerSupportsBlockWise(t *testing.T) {
	transport := &recordingTransport{}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	var opts message.Options
	opts.Add(2, []byte{0x00, 0x40}) // max-message-size: 64
	opts.Add(4, nil)                // block-wise-transfer supported
	s.HandleReceived(remote, encode(t, message.Packet{Code: message.SignalCSM, Options: opts}))

	cb := pool.ResponseCallback{}
	req := message.Packet{
		Code:    message.MethodCode(message.POST),
		Token:   message.Token{0x0D},
		Payload: make([]byte, 200),
	}
	require.NoError(t, s.MakeRequest(remote, req, cb))

	got, ok := transport.last()
	require.True(t, ok, "capped request should still reach the transport")

	block, ok := got.Options.Block1()
	require.True(t, ok, "capped request must carry a Block1 option")
	assert.True(t, block.More)
	assert.LessOrEqual(t, len(got.Payload), block.BlockSize())
}

func TestHandleReceivedAbortDrainsTransactions(t *testing.T) {
	transport := &recordingTransport{}
	s := server.New(transport, nil)
	remote := fakeAddr("10.0.0.1:5683")

	errCh := make(chan error, 1)
	cb := pool.ResponseCallback{OnError: func(err error) { errCh <- err }}
	req := message.Packet{Code: message.MethodCode(message.GET), Token: message.Token{0x0B}}
	require.NoError(t, s.MakeRequest(remote, req, cb))

	s.HandleReceived(remote, encode(t, message.Packet{Code: message.SignalAbort}))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, server.ErrTransportClosed)
	default:
		t.Fatal("abort should have drained the pending transaction")
	}
}
