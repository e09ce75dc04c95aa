package message

import (
	"sort"

	"github.com/coregx/coap/internal/wire"
)

// OptionNumber identifies a CoAP option (RFC 7252 Section 5.10).
type OptionNumber uint16

// Well-known option numbers.
const (
	IfMatch       OptionNumber = 1
	URIHost       OptionNumber = 3
	ETag          OptionNumber = 4
	IfNoneMatch   OptionNumber = 5
	Observe       OptionNumber = 6
	URIPort       OptionNumber = 7
	LocationPath  OptionNumber = 8
	URIPath       OptionNumber = 11
	ContentFormat OptionNumber = 12
	MaxAge        OptionNumber = 14
	URIQuery      OptionNumber = 15
	Accept        OptionNumber = 17
	LocationQuery OptionNumber = 20
	Block2        OptionNumber = 23
	Block1        OptionNumber = 27
	Size2         OptionNumber = 28
	ProxyURI      OptionNumber = 35
	ProxyScheme   OptionNumber = 39
	Size1         OptionNumber = 60
)

// optionDef describes the static, registered properties of an option
// number: its value length range and whether it may repeat. Criticality
// is not stored here — it is derived from the number's parity, per the
// specification.
type optionDef struct {
	minLen, maxLen int
	repeatable     bool
}

var optionDefs = map[OptionNumber]optionDef{
	IfMatch:       {0, 8, true},
	URIHost:       {1, 255, false},
	ETag:          {1, 8, true},
	IfNoneMatch:   {0, 0, false},
	Observe:       {0, 3, false},
	URIPort:       {0, 2, false},
	LocationPath:  {0, 255, true},
	URIPath:       {0, 255, true},
	ContentFormat: {0, 2, false},
	MaxAge:        {0, 4, false},
	URIQuery:      {0, 255, true},
	Accept:        {0, 2, false},
	LocationQuery: {0, 255, true},
	Block2:        {0, 3, false},
	Block1:        {0, 3, false},
	Size2:         {0, 4, false},
	ProxyURI:      {1, 1034, false},
	ProxyScheme:   {1, 255, false},
	Size1:         {0, 4, false},
}

// IsCritical reports whether an option number is critical (odd) or
// elective (even), per RFC 7252 Section 5.4.1.
func (n OptionNumber) IsCritical() bool {
	return n%2 == 1
}

// Repeatable reports whether the registry allows this option number to
// appear more than once. Unregistered numbers default to repeatable,
// since the codec accepts unknown options without rejecting them.
func (n OptionNumber) Repeatable() bool {
	if def, ok := optionDefs[n]; ok {
		return def.repeatable
	}
	return true
}

// validateLength checks a value length against the registered range for
// n. Unregistered option numbers are not range-checked.
func (n OptionNumber) validateLength(l int) error {
	def, ok := optionDefs[n]
	if !ok {
		return nil
	}
	if l < def.minLen || l > def.maxLen {
		return formatErrorf(ErrOptionValueLength, "option %d: value length %d out of range [%d,%d]", int(n), l, def.minLen, def.maxLen)
	}
	return nil
}

// Option is a single (number, value) pair.
type Option struct {
	Number OptionNumber
	Value  []byte
}

// Options is an ordered list of options, kept sorted ascending by Number.
// The registry says which numbers may repeat (Number.Repeatable()), but
// nothing here checks it: the decoder keeps every duplicate it reads
// (spec: unknown/duplicate handling is a registry concern, not a hard
// decode failure), and Add stores a second value under a non-repeatable
// number just as it does under a repeatable one.
type Options []Option

// Add inserts opt, keeping Options sorted ascending by Number and
// preserving insertion order among options sharing a Number.
func (o *Options) Add(number OptionNumber, value []byte) {
	opt := Option{Number: number, Value: value}
	i := sort.Search(len(*o), func(i int) bool { return (*o)[i].Number > number })
	*o = append(*o, Option{})
	copy((*o)[i+1:], (*o)[i:])
	(*o)[i] = opt
}

// Find returns all values stored under number, in the order they were added.
func (o Options) Find(number OptionNumber) [][]byte {
	var vals [][]byte
	for _, opt := range o {
		if opt.Number == number {
			vals = append(vals, opt.Value)
		}
	}
	return vals
}

// First returns the first value stored under number, if any.
func (o Options) First(number OptionNumber) ([]byte, bool) {
	for _, opt := range o {
		if opt.Number == number {
			return opt.Value, true
		}
	}
	return nil, false
}

// Remove drops every option stored under number.
func (o *Options) Remove(number OptionNumber) {
	kept := (*o)[:0]
	for _, opt := range *o {
		if opt.Number != number {
			kept = append(kept, opt)
		}
	}
	*o = kept
}

// --- typed accessors (RFC 7252 Section 5.10, RFC 7959 for Block1/Block2) ---

func (o Options) URIPath() []string     { return stringsOf(o.Find(URIPath)) }
func (o Options) URIQuery() []string    { return stringsOf(o.Find(URIQuery)) }
func (o Options) LocationPath() []string { return stringsOf(o.Find(LocationPath)) }
func (o Options) ETags() [][]byte       { return o.Find(ETag) }
func (o Options) IfMatch() [][]byte     { return o.Find(IfMatch) }

func (o Options) IfNoneMatch() bool {
	_, ok := o.First(IfNoneMatch)
	return ok
}

func (o Options) ContentFormat() (uint32, bool) { return uintOpt(o, ContentFormat) }
func (o Options) Accept() (uint32, bool)         { return uintOpt(o, Accept) }
func (o Options) MaxAge() (uint32, bool)         { return uintOpt(o, MaxAge) }
func (o Options) Size1() (uint32, bool)          { return uintOpt(o, Size1) }
func (o Options) Size2() (uint32, bool)          { return uintOpt(o, Size2) }
func (o Options) Observe() (uint32, bool)         { return uintOpt(o, Observe) }

func (o Options) ProxyURI() (string, bool) {
	v, ok := o.First(ProxyURI)
	if !ok {
		return "", false
	}
	return string(v), true
}

func (o Options) ProxyScheme() (string, bool) {
	v, ok := o.First(ProxyScheme)
	if !ok {
		return "", false
	}
	return string(v), true
}

func (o Options) Block1() (BlockOption, bool) { return blockOpt(o, Block1) }
func (o Options) Block2() (BlockOption, bool) { return blockOpt(o, Block2) }

func blockOpt(o Options, number OptionNumber) (BlockOption, bool) {
	v, ok := o.First(number)
	if !ok {
		return BlockOption{}, false
	}
	b, err := DecodeBlockOption(v)
	if err != nil {
		return BlockOption{}, false
	}
	return b, true
}

func stringsOf(vals [][]byte) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

func uintOpt(o Options, number OptionNumber) (uint32, bool) {
	v, ok := o.First(number)
	if !ok {
		return 0, false
	}
	var n uint32
	for _, b := range v {
		n = n<<8 | uint32(b)
	}
	return n, true
}

// nibble encoding thresholds (specification Section 4.2).
const (
	nibbleExt1 = 13
	nibbleExt2 = 14
	nibbleExt2Base = 269
	nibbleReserved = 15
)

// EncodeOptions appends the wire encoding of opts (assumed already
// sorted ascending by Number, as Options.Add maintains) to w.
func EncodeOptions(w *wire.Writer, opts Options) error {
	var prev OptionNumber
	for _, opt := range opts {
		if opt.Number < prev {
			return ErrOptionOrder
		}
		if err := opt.Number.validateLength(len(opt.Value)); err != nil {
			return err
		}
		delta := uint32(opt.Number - prev)
		prev = opt.Number

		deltaNibble, deltaExt := splitNibble(delta)
		lenNibble, lenExt := splitNibble(uint32(len(opt.Value)))

		w.PutU8(deltaNibble<<4 | lenNibble)
		writeExt(w, deltaNibble, deltaExt)
		writeExt(w, lenNibble, lenExt)
		w.PutExact(opt.Value)
	}
	return nil
}

// splitNibble picks the minimal-width nibble encoding for a quantity.
func splitNibble(v uint32) (nibble byte, ext uint32) {
	switch {
	case v < nibbleExt1:
		return byte(v), 0
	case v < nibbleExt2Base:
		return nibbleExt1, v - nibbleExt1
	default:
		return nibbleExt2, v - nibbleExt2Base
	}
}

func writeExt(w *wire.Writer, nibble byte, ext uint32) {
	switch nibble {
	case nibbleExt1:
		w.PutU8(byte(ext))
	case nibbleExt2:
		w.PutU16(uint16(ext))
	}
}

// DecodeOptions reads options from data until it is exhausted or a 0xFF
// payload marker is encountered. It returns the decoded options, the
// number of bytes consumed (including a marker byte if one was seen),
// and whether a marker was seen. Bytes before a marker are always read
// as options. This single routine is shared by the UDP and TCP framings,
// which both apply SplitOptionsAndPayload's marker rule afterward: a
// non-empty payload needs the marker in either framing.
func DecodeOptions(data []byte) (opts Options, consumed int, sawMarker bool, err error) {
	r := wire.NewReader(data)
	var prev OptionNumber

	for {
		b, peekErr := r.PeekByte()
		if peekErr != nil {
			break // end of data, no marker
		}
		if b == 0xFF {
			_, _ = r.U8()
			sawMarker = true
			break
		}

		header, rerr := r.U8()
		if rerr != nil {
			return nil, 0, false, formatErrorf(ErrShortRead, "option header")
		}
		deltaNibble := header >> 4
		lenNibble := header & 0x0F

		if deltaNibble == nibbleReserved || lenNibble == nibbleReserved {
			return nil, 0, false, formatErrorf(ErrReservedNibble, "reserved nibble in option header 0x%02x", header)
		}

		delta, derr := resolveExt(r, deltaNibble)
		if derr != nil {
			return nil, 0, false, formatErrorf(ErrShortRead, "extended delta")
		}
		length, lerr := resolveExt(r, lenNibble)
		if lerr != nil {
			return nil, 0, false, formatErrorf(ErrShortRead, "extended length")
		}

		value, verr := r.Exact(int(length))
		if verr != nil {
			return nil, 0, false, formatErrorf(ErrShortRead, "option value of length %d", length)
		}
		valueCopy := append([]byte(nil), value...)

		number := prev + OptionNumber(delta)
		if err := number.validateLength(len(valueCopy)); err != nil {
			return nil, 0, false, err
		}
		opts = append(opts, Option{Number: number, Value: valueCopy})
		prev = number
	}

	return opts, r.Mark(), sawMarker, nil
}

// SplitOptionsAndPayload decodes the options at the start of body and
// returns them along with whatever payload follows, enforcing that a
// non-empty payload is always preceded by the 0xFF marker and that a
// marker is never followed by zero bytes. Both the UDP and TCP codecs
// share this rule; they differ only in how body's bounds are determined
// (rest-of-datagram for UDP, the TCP length field's declared span for TCP).
func SplitOptionsAndPayload(body []byte) (Options, []byte, error) {
	opts, consumed, sawMarker, err := DecodeOptions(body)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case consumed < len(body) && !sawMarker:
		return nil, nil, formatErrorf(ErrMissingMarker, "options end without marker before %d remaining bytes", len(body)-consumed)
	case consumed < len(body):
		return opts, append([]byte(nil), body[consumed:]...), nil
	case sawMarker:
		return nil, nil, formatErrorf(ErrMissingMarker, "marker present but no payload follows")
	default:
		return opts, nil, nil
	}
}

func resolveExt(r *wire.Reader, nibble byte) (uint32, error) {
	switch nibble {
	case nibbleExt1:
		b, err := r.U8()
		if err != nil {
			return 0, err
		}
		return uint32(b) + nibbleExt1, nil
	case nibbleExt2:
		v, err := r.U16()
		if err != nil {
			return 0, err
		}
		return uint32(v) + nibbleExt2Base, nil
	default:
		return uint32(nibble), nil
	}
}
