package message

import "net"

// MaxTokenLength is the largest token length the 4-bit TKL field can
// represent without being a reserved value.
const MaxTokenLength = 8

// Token is a short opaque request/response correlator, 0..8 raw bytes.
type Token []byte

// Framing distinguishes which wire format a Packet was parsed from (or is
// destined for), since Type and MessageID are meaningful only in UDP framing.
type Framing uint8

const (
	FramingUDP Framing = iota
	FramingTCP
)

// Packet is the framing-agnostic CoAP message value. It is immutable
// after construction by convention (methods never mutate Options/Payload
// in place on a shared Packet); callers that need to change a Packet
// build a new one.
type Packet struct {
	Remote    net.Addr
	Framing   Framing
	Type      Type   // meaningful only when Framing == FramingUDP
	MessageID uint16 // meaningful only when Framing == FramingUDP
	Token     Token
	Code      Code
	Options   Options
	Payload   []byte
}

// Validate checks token length and that options are in ascending order.
// Code/Method exclusivity is not checked here because the Code tagged
// union makes the conflicting state unrepresentable by construction.
// Validate does not check Type/MessageID against Framing, and does not
// check payload-marker placement (the codecs write the marker only before
// a non-empty payload, and SplitOptionsAndPayload rejects a bare marker).
func (p Packet) Validate() error {
	if len(p.Token) > MaxTokenLength {
		return formatErrorf(ErrBadTokenLength, "token length %d exceeds %d", len(p.Token), MaxTokenLength)
	}
	var prev OptionNumber
	for _, opt := range p.Options {
		if opt.Number < prev {
			return ErrOptionOrder
		}
		prev = opt.Number
	}
	return nil
}

// IsEmpty reports whether the packet carries the 0.00 empty code (used
// for UDP pings/acks with no payload, per the specification).
func (p Packet) IsEmpty() bool {
	return p.Code.Kind == CodeEmpty
}
