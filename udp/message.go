// Package udp implements the RFC 7252 UDP framing for CoAP packets: the
// 4-byte fixed header, token, options, and optional payload marker plus
// payload.
package udp

import (
	"fmt"
	"net"

	"github.com/coregx/coap/internal/wire"
	"github.com/coregx/coap/message"
)

// supportedVersion is the only CoAP version this codec accepts.
const supportedVersion = 1

// Parse decodes a complete UDP-framed CoAP packet from data. remote is
// attached to the returned Packet for the caller's convenience; the
// codec itself never touches the network.
func Parse(data []byte, remote net.Addr) (message.Packet, error) {
	r := wire.NewReader(data)

	header, err := r.U8()
	if err != nil {
		return message.Packet{}, fmt.Errorf("udp: read header: %w", message.ErrShortRead)
	}

	version := header >> 6
	if version != supportedVersion {
		return message.Packet{}, fmt.Errorf("udp: version %d: %w", version, message.ErrBadVersion)
	}
	typ := message.Type((header >> 4) & 0x03)
	tkl := int(header & 0x0F)
	if tkl > message.MaxTokenLength {
		return message.Packet{}, fmt.Errorf("udp: TKL %d: %w", tkl, message.ErrBadTokenLength)
	}

	codeByte, err := r.U8()
	if err != nil {
		return message.Packet{}, fmt.Errorf("udp: read code: %w", message.ErrShortRead)
	}
	mid, err := r.U16()
	if err != nil {
		return message.Packet{}, fmt.Errorf("udp: read message id: %w", message.ErrShortRead)
	}

	token, err := r.Exact(tkl)
	if err != nil {
		return message.Packet{}, fmt.Errorf("udp: read token: %w", message.ErrShortRead)
	}
	tokenCopy := append(message.Token(nil), token...)

	rest := r.Rest()
	opts, payload, err := message.SplitOptionsAndPayload(rest)
	if err != nil {
		return message.Packet{}, err
	}

	pkt := message.Packet{
		Remote:    remote,
		Framing:   message.FramingUDP,
		Type:      typ,
		MessageID: mid,
		Token:     tokenCopy,
		Code:      message.CodeFromByte(codeByte),
		Options:   opts,
		Payload:   payload,
	}
	if err := pkt.Validate(); err != nil {
		return message.Packet{}, err
	}
	return pkt, nil
}

// Serialize encodes p into its UDP wire representation.
func Serialize(p message.Packet) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(p.Token) > message.MaxTokenLength {
		return nil, fmt.Errorf("udp: %w", message.ErrBadTokenLength)
	}

	w := wire.NewWriter(16 + len(p.Payload))
	header := byte(supportedVersion<<6) | byte(p.Type&0x03)<<4 | byte(len(p.Token)&0x0F)
	w.PutU8(header)
	w.PutU8(p.Code.Byte())
	w.PutU16(p.MessageID)
	w.PutExact(p.Token)

	if err := message.EncodeOptions(w, p.Options); err != nil {
		return nil, err
	}
	if len(p.Payload) > 0 {
		w.PutU8(0xFF)
		w.PutExact(p.Payload)
	}
	return w.Bytes(), nil
}
