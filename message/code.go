package message

import "fmt"

// Type is the UDP-framing message type (RFC 7252 Section 3). It has no
// meaning in TCP framing, where the transport is already reliable and
// ordered.
type Type uint8

const (
	Confirmable    Type = 0
	NonConfirmable Type = 1
	Acknowledgement Type = 2
	Reset          Type = 3
)

func (t Type) String() string {
	switch t {
	case Confirmable:
		return "CON"
	case NonConfirmable:
		return "NON"
	case Acknowledgement:
		return "ACK"
	case Reset:
		return "RST"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Method is a request method code (RFC 7252 Section 12.1.1), a class-0
// wire byte. The draft-ietf-core-coap-tcp-tls signaling codes are not
// methods: they are class-7 codes (see SignalCSM..SignalAbort).
type Method uint8

const (
	GET    Method = 1
	POST   Method = 2
	PUT    Method = 3
	DELETE Method = 4
	FETCH  Method = 5
	PATCH  Method = 6
	IPATCH Method = 7
)

func (m Method) String() string {
	switch m {
	case GET:
		return "GET"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case DELETE:
		return "DELETE"
	case FETCH:
		return "FETCH"
	case PATCH:
		return "PATCH"
	case IPATCH:
		return "iPATCH"
	default:
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
}

// CodeKind discriminates the three cases a wire code byte can represent.
type CodeKind uint8

const (
	// CodeEmpty is the 0.00 empty message: no method, no response/signal code.
	// Used for UDP pings/acks carrying no payload.
	CodeEmpty CodeKind = iota
	// CodeMethod is a request method, wire values 1..10.
	CodeMethod
	// CodeResponse is a response or signaling code, class.detail with
	// class in 2..7.
	CodeResponse
)

// Code is a tagged union over {Empty, Method, Response/Signal}. DESIGN
// NOTES in the specification call out that a sum type eliminates, rather
// than runtime-checks, the "code and method are mutually exclusive"
// invariant — this type is that sum type: only one branch of fields is
// ever meaningful, selected by Kind.
type Code struct {
	Kind   CodeKind
	Method Method // valid iff Kind == CodeMethod
	Class  uint8  // valid iff Kind == CodeResponse, top 3 bits of the wire byte
	Detail uint8  // valid iff Kind == CodeResponse, bottom 5 bits of the wire byte
}

// EmptyCode returns the 0.00 empty-message code.
func EmptyCode() Code { return Code{Kind: CodeEmpty} }

// MethodCode returns a request-method code.
func MethodCode(m Method) Code { return Code{Kind: CodeMethod, Method: m} }

// ResponseCode returns a response or signaling code from its class and detail.
func ResponseCode(class, detail uint8) Code {
	return Code{Kind: CodeResponse, Class: class & 0x07, Detail: detail & 0x1f}
}

// Well-known response codes (RFC 7252 Section 5.9) used by the dispatch layer.
var (
	Content             = ResponseCode(2, 5)
	Changed             = ResponseCode(2, 4)
	Created             = ResponseCode(2, 1)
	BadRequest          = ResponseCode(4, 0)
	NotFound            = ResponseCode(4, 4)
	InternalServerError = ResponseCode(5, 0)
)

// Signaling codes (draft-ietf-core-coap-tcp-tls, class 7).
var (
	SignalCSM     = ResponseCode(7, 1)
	SignalPing    = ResponseCode(7, 2)
	SignalPong    = ResponseCode(7, 3)
	SignalRelease = ResponseCode(7, 4)
	SignalAbort   = ResponseCode(7, 5)
)

// Byte encodes Code to its wire representation c.dd.
func (c Code) Byte() byte {
	switch c.Kind {
	case CodeEmpty:
		return 0
	case CodeMethod:
		return byte(c.Method)
	case CodeResponse:
		return c.Class<<5 | c.Detail
	default:
		return 0
	}
}

// CodeFromByte classifies a wire code byte into the tagged union.
//
// Per the specification's open question: byte 0 is always the distinct
// Empty case, never "response code 0.00" — values 1..10 are methods, and
// every other non-zero value falls through to the class.detail
// response/signal reading.
func CodeFromByte(b byte) Code {
	switch {
	case b == 0:
		return EmptyCode()
	case b >= 1 && b <= 10:
		return MethodCode(Method(b))
	default:
		return ResponseCode(b>>5, b&0x1f)
	}
}

func (c Code) String() string {
	switch c.Kind {
	case CodeEmpty:
		return "0.00"
	case CodeMethod:
		return c.Method.String()
	case CodeResponse:
		return fmt.Sprintf("%d.%02d", c.Class, c.Detail)
	default:
		return "invalid"
	}
}

// IsSignal reports whether c is a class-7 signaling code.
func (c Code) IsSignal() bool {
	return c.Kind == CodeResponse && c.Class == 7
}
