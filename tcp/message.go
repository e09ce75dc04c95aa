package tcp

import (
	"errors"
	"fmt"
	"net"

	"github.com/coregx/coap/internal/wire"
	"github.com/coregx/coap/message"
)

// Length-field bases from the specification's TCP framing table.
const (
	len13Base = 13
	len14Base = 269
	len15Base = 65805
)

// Parse decodes a single complete TCP-framed packet from data, which must
// contain at least one full packet (trailing bytes beyond it are
// ignored). Use DecodeIfBuffered instead when reading from a streaming
// source that may not yet have a full packet buffered.
func Parse(data []byte, remote net.Addr) (message.Packet, error) {
	pkt, _, err := decodeOne(data, remote)
	return pkt, err
}

// DecodeIfBuffered attempts to decode one packet from the start of data.
// If data does not yet contain a complete packet it returns
// ErrInsufficientData and consumed == 0, leaving data available for the
// caller to grow and retry — no bytes are considered used. If data holds
// a full packet that is simply malformed, the underlying format error
// (e.g. message.ErrBadTokenLength, message.ErrReservedNibble,
// message.ErrMissingMarker) is returned as-is, never relabeled as
// ErrInsufficientData: no amount of additional buffering fixes a format
// error, so a caller retrying on ErrInsufficientData alone must not spin
// on this case — it has to drop the connection instead, per the
// specification's error-propagation rules. On success it returns the
// packet and the number of bytes it occupied, so the caller can slice
// data[consumed:] before the next call.
func DecodeIfBuffered(data []byte) (message.Packet, int, error) {
	pkt, consumed, err := decodeOne(data, nil)
	if err != nil {
		// A short read inside the declared body (e.g. a truncated option) is
		// wrapped with message.ErrFormat and is not retried.
		if errors.Is(err, message.ErrShortRead) && !errors.Is(err, message.ErrFormat) {
			return message.Packet{}, 0, fmt.Errorf("%w: %w", ErrInsufficientData, err)
		}
		return message.Packet{}, 0, err
	}
	return pkt, consumed, nil
}

func decodeOne(data []byte, remote net.Addr) (message.Packet, int, error) {
	r := wire.NewReader(data)

	first, err := r.U8()
	if err != nil {
		return message.Packet{}, 0, fmt.Errorf("tcp: read length/tkl byte: %w", message.ErrShortRead)
	}
	lenNibble := first >> 4
	tkl := int(first & 0x0F)
	if tkl > message.MaxTokenLength {
		return message.Packet{}, 0, fmt.Errorf("tcp: TKL %d: %w", tkl, message.ErrBadTokenLength)
	}

	length, err := resolveLength(r, lenNibble)
	if err != nil {
		return message.Packet{}, 0, err
	}

	codeByte, err := r.U8()
	if err != nil {
		return message.Packet{}, 0, fmt.Errorf("tcp: read code: %w", message.ErrShortRead)
	}

	if r.Len() < int(length) {
		return message.Packet{}, 0, fmt.Errorf("tcp: need %d more bytes: %w", int(length)-r.Len(), message.ErrShortRead)
	}
	body, err := r.Exact(int(length))
	if err != nil {
		return message.Packet{}, 0, fmt.Errorf("tcp: read body: %w", message.ErrShortRead)
	}
	if len(body) < tkl {
		return message.Packet{}, 0, fmt.Errorf("tcp: token length %d exceeds declared body: %w", tkl, message.ErrBadTokenLength)
	}
	token := append(message.Token(nil), body[:tkl]...)

	opts, payload, err := message.SplitOptionsAndPayload(body[tkl:])
	if err != nil {
		return message.Packet{}, 0, err
	}

	pkt := message.Packet{
		Remote:  remote,
		Framing: message.FramingTCP,
		Token:   token,
		Code:    message.CodeFromByte(codeByte),
		Options: opts,
		Payload: payload,
	}
	if err := pkt.Validate(); err != nil {
		return message.Packet{}, 0, err
	}
	return pkt, r.Mark(), nil
}

// resolveLength reads the extended length bytes (if any) selected by
// lenNibble and returns the total declared body length.
func resolveLength(r *wire.Reader, lenNibble byte) (uint32, error) {
	switch {
	case lenNibble < len13Base:
		return uint32(lenNibble), nil
	case lenNibble == 13:
		b, err := r.U8()
		if err != nil {
			return 0, fmt.Errorf("tcp: read extended length (1 byte): %w", message.ErrShortRead)
		}
		return uint32(b) + len13Base, nil
	case lenNibble == 14:
		v, err := r.U16()
		if err != nil {
			return 0, fmt.Errorf("tcp: read extended length (2 bytes): %w", message.ErrShortRead)
		}
		return uint32(v) + len14Base, nil
	default: // 15
		v, err := r.U32()
		if err != nil {
			return 0, fmt.Errorf("tcp: read extended length (4 bytes): %w", message.ErrShortRead)
		}
		return v + len15Base, nil
	}
}

// Serialize encodes p into its TCP wire representation, selecting the
// minimal-width length encoding.
func Serialize(p message.Packet) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(p.Token) > message.MaxTokenLength {
		return nil, fmt.Errorf("tcp: %w", message.ErrBadTokenLength)
	}

	optsW := wire.NewWriter(32)
	if err := message.EncodeOptions(optsW, p.Options); err != nil {
		return nil, err
	}
	optsLen := optsW.Len()

	bodyLen := len(p.Token) + optsLen
	if len(p.Payload) > 0 {
		bodyLen += 1 + len(p.Payload)
	}

	w := wire.NewWriter(6 + bodyLen)
	lenNibble, extBytes := splitLength(uint32(bodyLen))
	w.PutU8(lenNibble<<4 | byte(len(p.Token)&0x0F))
	w.PutExact(extBytes)
	w.PutU8(p.Code.Byte())
	w.PutExact(p.Token)
	w.PutExact(optsW.Bytes())
	if len(p.Payload) > 0 {
		w.PutU8(0xFF)
		w.PutExact(p.Payload)
	}
	return w.Bytes(), nil
}

// splitLength picks the minimal-width length-nibble encoding for n,
// returning the nibble and any extended-length bytes (big-endian).
func splitLength(n uint32) (nibble byte, ext []byte) {
	switch {
	case n < len13Base:
		return byte(n), nil
	case n < len14Base:
		return 13, []byte{byte(n - len13Base)}
	case n < len15Base:
		rem := n - len14Base
		return 14, []byte{byte(rem >> 8), byte(rem)}
	default:
		rem := n - len15Base
		return 15, []byte{byte(rem >> 24), byte(rem >> 16), byte(rem >> 8), byte(rem)}
	}
}
