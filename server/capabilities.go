package server

import (
	"fmt"

	"github.com/coregx/coap/message"
	"github.com/coregx/coap/tcp"
)

// Signal-option numbers carried on 7.01 CSM messages
// (draft-ietf-core-coap-tcp-tls Section 5.3).
const (
	csmMaxMessageSize    message.OptionNumber = 2
	csmBlockWiseTransfer message.OptionNumber = 4
)

// defaultMaxMessageSize is the value a peer is assumed to support until
// it sends a CSM saying otherwise (draft-ietf-core-coap-tcp-tls Section 5.3).
const defaultMaxMessageSize = 1152

// PeerCapabilities records what a remote advertised in its 7.01 CSM
// signal: the largest message it accepts and whether it supports
// block-wise transfer. MakeRequest consults this to cap outgoing
// message size and to decide whether to offer Block1/Block2 to that peer.
type PeerCapabilities struct {
	MaxMessageSize    uint32
	BlockWiseTransfer bool
}

func defaultPeerCapabilities() PeerCapabilities {
	return PeerCapabilities{MaxMessageSize: defaultMaxMessageSize}
}

// capabilitiesFromCSM extracts PeerCapabilities from a 7.01 CSM packet's options.
func capabilitiesFromCSM(pkt message.Packet) PeerCapabilities {
	caps := defaultPeerCapabilities()
	if v, ok := pkt.Options.First(csmMaxMessageSize); ok {
		var n uint32
		for _, b := range v {
			n = n<<8 | uint32(b)
		}
		caps.MaxMessageSize = n
	}
	if _, ok := pkt.Options.First(csmBlockWiseTransfer); ok {
		caps.BlockWiseTransfer = true
	}
	return caps
}

// capToPeer serializes req as-is if it already fits within caps'
// advertised max message size. Otherwise, if the peer supports
// block-wise transfer, it re-serializes req carrying only its first
// block (offering Block1 to the peer); if the peer does not, it refuses
// with ErrMessageTooLarge rather than sending a message the peer has
// told us it cannot accept.
func capToPeer(req message.Packet, caps PeerCapabilities) (message.Packet, []byte, error) {
	data, err := tcp.Serialize(req)
	if err != nil {
		return message.Packet{}, nil, err
	}
	if caps.MaxMessageSize == 0 || uint32(len(data)) <= caps.MaxMessageSize {
		return req, data, nil
	}
	if !caps.BlockWiseTransfer {
		return message.Packet{}, nil, fmt.Errorf("server: request of %d bytes exceeds peer's max message size %d and peer does not support block-wise transfer: %w", len(data), caps.MaxMessageSize, ErrMessageTooLarge)
	}
	return capToFirstBlock(req, caps)
}

// capToFirstBlock re-serializes req carrying only its first block, sized
// to the largest BlockSZX whose serialized message fits within
// caps.MaxMessageSize, with a Block1 option offering the peer block-wise
// transfer for the rest.
func capToFirstBlock(req message.Packet, caps PeerCapabilities) (message.Packet, []byte, error) {
	fullPayload := req.Payload

	for szx := message.SZX1024; ; szx-- {
		block := message.BlockOption{SZX: szx}
		part := message.CreateBlockPart(block, fullPayload)
		block.More = len(part) < len(fullPayload)

		candidate := req
		candidate.Options = append(message.Options(nil), req.Options...)
		candidate.Options.Remove(message.Block1)
		candidate.Options.Add(message.Block1, block.Encode())
		candidate.Payload = part

		data, err := tcp.Serialize(candidate)
		if err != nil {
			return message.Packet{}, nil, err
		}
		if uint32(len(data)) <= caps.MaxMessageSize || szx == message.SZX16 {
			return candidate, data, nil
		}
	}
}
